package stratum

import "testing"

func TestParseLineErrorEnvelope(t *testing.T) {
	box := &minerIDBox{}
	action := parseLine(`{"error":{"code":-1,"message":"bad nonce"}}`, box)
	errAction, ok := action.(ErrorAction)
	if !ok {
		t.Fatalf("expected ErrorAction, got %T", action)
	}
	if errAction.Err == "" {
		t.Fatalf("expected a non-empty error message")
	}
}

func TestParseLineKnownOk(t *testing.T) {
	box := &minerIDBox{}
	action := parseLine(`{"id":1,"result":{"status":"OK","id":null},"error":null}`, box)
	if _, ok := action.(OkAction); !ok {
		t.Fatalf("expected OkAction, got %T", action)
	}
}

func TestParseLineKnownKeepAliveOk(t *testing.T) {
	box := &minerIDBox{}
	action := parseLine(`{"id":1,"result":{"status":"KEEPALIVED","id":null},"error":null}`, box)
	if _, ok := action.(KeepAliveOkAction); !ok {
		t.Fatalf("expected KeepAliveOkAction, got %T", action)
	}
}

func TestParseLineLoginResponseSetsMinerID(t *testing.T) {
	box := &minerIDBox{}
	line := `{"id":1,"result":{"status":"OK","id":"miner-x","job":{"blob":"aa","job_id":"j1","target":"ffffff00"}},"error":null}`
	action := parseLine(line, box)

	job, ok := action.(JobAction)
	if !ok {
		t.Fatalf("expected JobAction, got %T", action)
	}
	want := JobAction{MinerID: "miner-x", Blob: "aa", JobID: "j1", Target: "ffffff00"}
	if job != want {
		t.Fatalf("got %+v, want %+v", job, want)
	}

	id, ok := box.Get()
	if !ok || id != "miner-x" {
		t.Fatalf("miner id not set: %q, %v", id, ok)
	}
}

func TestParseLineLoginResponseNotOK(t *testing.T) {
	box := &minerIDBox{}
	line := `{"id":1,"result":{"status":"FAIL","id":"","job":{}},"error":null}`
	if _, ok := parseLine(line, box).(ErrorAction); !ok {
		t.Fatalf("expected ErrorAction for non-OK login status")
	}
	if _, ok := box.Get(); ok {
		t.Fatalf("miner id should not be set after a failed login")
	}
}

func TestParseLineJobReusesCachedMinerID(t *testing.T) {
	box := &minerIDBox{}
	box.Set("miner-x")

	line := `{"method":"job","params":{"blob":"bb","job_id":"j2","target":"ffff0000"}}`
	job, ok := parseLine(line, box).(JobAction)
	if !ok {
		t.Fatalf("expected JobAction, got %T", parseLine(line, box))
	}
	want := JobAction{MinerID: "miner-x", Blob: "bb", JobID: "j2", Target: "ffff0000"}
	if job != want {
		t.Fatalf("got %+v, want %+v", job, want)
	}
}

func TestParseLineJobBeforeLoginIsError(t *testing.T) {
	box := &minerIDBox{}
	line := `{"method":"job","params":{"blob":"bb","job_id":"j2","target":"ffff0000"}}`
	if _, ok := parseLine(line, box).(ErrorAction); !ok {
		t.Fatalf("expected ErrorAction when miner_id is unset")
	}
}

func TestParseLineUnknownMethod(t *testing.T) {
	box := &minerIDBox{}
	if _, ok := parseLine(`{"method":"frobnicate","params":{}}`, box).(ErrorAction); !ok {
		t.Fatalf("expected ErrorAction for an unrecognized method")
	}
}

func TestParseLineGarbageIsError(t *testing.T) {
	box := &minerIDBox{}
	if _, ok := parseLine("not json at all", box).(ErrorAction); !ok {
		t.Fatalf("expected ErrorAction for unparseable input")
	}
}

func TestMinerIDBoxWrittenOnce(t *testing.T) {
	box := &minerIDBox{}
	if _, ok := box.Get(); ok {
		t.Fatalf("expected no miner id initially")
	}
	box.Set("m1")
	id, ok := box.Get()
	if !ok || id != "m1" {
		t.Fatalf("got %q, %v", id, ok)
	}
}
