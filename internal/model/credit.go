package model

// CreditBalance is the prepaid balance of one tenant. Remaining never drops
// below zero; TotalUsed only grows. Mutated exclusively through the atomic
// reserve and add operations of the credit repository.
type CreditBalance struct {
	TenantID  int64 `json:"tenant_id"`
	Remaining int64 `json:"remaining"`
	TotalUsed int64 `json:"total_used"`
}
