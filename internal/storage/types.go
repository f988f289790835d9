// Package storage provides local persistence for the miner process.
package storage

// SubmittedShare identifies a share the miner has already sent upstream,
// keyed by the job it was mined against and the nonce that satisfied it.
type SubmittedShare struct {
	JobID     string `json:"job_id"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"ts"`
}
