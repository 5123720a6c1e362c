package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
}

func (f *fakeExec) record(cmd string, args []string) {
	f.calls = append(f.calls, cmd)
	f.args = append(f.args, args)
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.record("login", nil)
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.record("logout", nil)
	f.loggedIn = false
	return nil
}
func (f *fakeExec) Token(ctx context.Context, args []string) error {
	f.record("token", args)
	return nil
}
func (f *fakeExec) Send(ctx context.Context, args []string) error {
	f.record("send", args)
	return nil
}
func (f *fakeExec) Fetch(ctx context.Context, args []string) error {
	f.record("fetch", args)
	return nil
}
func (f *fakeExec) History(ctx context.Context, args []string) error {
	f.record("history", args)
	return nil
}
func (f *fakeExec) Sweep(ctx context.Context) error {
	f.record("sweep", nil)
	return nil
}
func (f *fakeExec) Clear(ctx context.Context, args []string) error {
	f.record("clear", args)
	return nil
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login",
		"help",
		"send report.pdf bob carol",
		"fetch att.json msg1 att1",
		"history conv1 20",
		"sweep",
		"clear conv1",
		"foobar",
		"logout",
		"exit",
	}, "\n"))

	exec := &fakeExec{loggedIn: false}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "status" }, sc)

	wantOrder := []string{"login", "send", "fetch", "history", "sweep", "clear", "logout"}
	if len(exec.calls) != len(wantOrder) {
		t.Fatalf("calls mismatch: %+v", exec.calls)
	}
	for i, want := range wantOrder {
		if exec.calls[i] != want {
			t.Fatalf("call %d: got %q, want %q (all: %v)", i, exec.calls[i], want, exec.calls)
		}
	}

	if got := exec.args[1]; len(got) != 3 || got[0] != "report.pdf" || got[1] != "bob" || got[2] != "carol" {
		t.Fatalf("send args: %v", got)
	}
	if got := exec.args[2]; len(got) != 3 || got[0] != "att.json" {
		t.Fatalf("fetch args: %v", got)
	}
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	// commands missing required args never reach the handlers
	input := strings.NewReader("send\nsend only-file\nfetch\nhistory\nquit\n")
	exec := &fakeExec{loggedIn: true}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "s" }, sc)

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
