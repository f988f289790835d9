package stratum

import "testing"

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	const n = 3
	subs := make([]chan Action, n)
	for i := range subs {
		subs[i] = make(chan Action, 1)
	}

	action := OkAction{}
	live := broadcast(subs, action)

	if len(live) != n {
		t.Fatalf("expected all %d subscribers to stay live, got %d", n, len(live))
	}
	for i, ch := range subs {
		select {
		case got := <-ch:
			if got != action {
				t.Fatalf("subscriber %d got %+v, want %+v", i, got, action)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcastDropsFullSubscriber(t *testing.T) {
	full := make(chan Action) // unbuffered, nothing reading: any send fails
	ok := make(chan Action, 1)

	live := broadcast([]chan Action{full, ok}, ErrorAction{Err: "x"})

	if len(live) != 1 || live[0] != ok {
		t.Fatalf("expected only the receptive subscriber to remain live, got %d", len(live))
	}
}

func TestBroadcastDropsClosedSubscriber(t *testing.T) {
	closed := make(chan Action, 1)
	close(closed)
	ok := make(chan Action, 1)

	live := broadcast([]chan Action{closed, ok}, OkAction{})

	if len(live) != 1 || live[0] != ok {
		t.Fatalf("expected the closed subscriber to be dropped, got %d live", len(live))
	}
}

func TestMaybeSendKeepAliveRequiresMinerID(t *testing.T) {
	box := &minerIDBox{}
	cmdCh := make(chan Command, 1)

	if maybeSendKeepAlive(box, cmdCh) {
		t.Fatalf("expected no keepalive without a miner id")
	}

	box.Set("mx")
	if !maybeSendKeepAlive(box, cmdCh) {
		t.Fatalf("expected a keepalive once the miner id is set")
	}

	select {
	case cmd := <-cmdCh:
		ka, ok := cmd.(KeepAliveCommand)
		if !ok || ka.MinerID != "mx" {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatalf("expected a command on the queue")
	}
}

func TestSubmitShareOnClosedChannel(t *testing.T) {
	cmdCh := make(chan Command)
	close(cmdCh)

	if err := SubmitShare(cmdCh, Share{}); err == nil {
		t.Fatalf("expected an error submitting to a closed command channel")
	}
}

func TestCommandChannelRequiresLogin(t *testing.T) {
	c := New(PoolConfig{}, make(chan error, 1))
	if _, err := c.CommandChannel(); err == nil {
		t.Fatalf("expected an error before Login is called")
	}
}
