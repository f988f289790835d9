package stratum

import (
	"encoding/json"
	"fmt"
	"sync"
)

// minerIDBox is the shared mutable miner id: optional string, written at
// most once by the receiver on a successful login, read by the keepalive
// task and by subsequent job dispatch. Readers and writers hold the lock
// for the shortest possible critical section.
type minerIDBox struct {
	mu sync.RWMutex
	id *string
}

func (b *minerIDBox) Get() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.id == nil {
		return "", false
	}
	return *b.id, true
}

func (b *minerIDBox) Set(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = &id
}

// parseLine implements the inbound-parse priority order from §4.2: error
// envelope, then known-ok envelope, then a "job" method notification, then
// the initial login response. Exactly one Action is produced per line.
func parseLine(line string, minerID *minerIDBox) Action {
	var errEnv errorEnvelope
	if err := json.Unmarshal([]byte(line), &errEnv); err == nil && errEnv.Error != nil {
		return ErrorAction{Err: fmt.Sprintf("error received: %s (code %d, raw json %s)", errEnv.Error.Message, errEnv.Error.Code, line)}
	}

	var okEnv okEnvelope
	if err := json.Unmarshal([]byte(line), &okEnv); err == nil && okEnv.Result.ID == nil {
		switch okEnv.Result.Status {
		case "OK":
			return OkAction{}
		case "KEEPALIVED":
			return KeepAliveOkAction{}
		}
	}

	var methodEnv methodEnvelope
	if err := json.Unmarshal([]byte(line), &methodEnv); err == nil && methodEnv.Method != "" {
		if methodEnv.Method != "job" {
			return ErrorAction{Err: fmt.Sprintf("unknown method received: %s", methodEnv.Method)}
		}
		return parseJob(line, minerID)
	}

	var login loginResponse
	if err := json.Unmarshal([]byte(line), &login); err != nil {
		return ErrorAction{Err: fmt.Sprintf("%v, json received %s", err, line)}
	}
	if login.Result.Status != "OK" {
		return ErrorAction{Err: fmt.Sprintf("not OK initial job received, status was %s", login.Result.Status)}
	}
	minerID.Set(login.Result.ID)
	return JobAction{
		MinerID: login.Result.ID,
		Blob:    login.Result.Job.Blob,
		JobID:   login.Result.Job.JobID,
		Target:  login.Result.Job.Target,
	}
}

func parseJob(line string, minerID *minerIDBox) Action {
	id, ok := minerID.Get()
	if !ok {
		return ErrorAction{Err: "miner_id not available for job (login did not complete first)"}
	}

	var resp jobResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return ErrorAction{Err: "error parsing job response"}
	}
	return JobAction{
		MinerID: id,
		Blob:    resp.Params.Blob,
		JobID:   resp.Params.JobID,
		Target:  resp.Params.Target,
	}
}
