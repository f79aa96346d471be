package streamlink_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
	"vodwatch/internal/services/streamlink"
)

type stubExecutor struct {
	result procrun.Result
	err    error
	calls  int
	cmds   []procrun.Command
}

func (s *stubExecutor) Run(_ context.Context, cmd procrun.Command) (procrun.Result, error) {
	s.calls++
	s.cmds = append(s.cmds, cmd)
	return s.result, s.err
}

func newClient(t *testing.T, exec procrun.Executor, opts ...streamlink.Option) *streamlink.Client {
	t.Helper()
	opts = append([]streamlink.Option{streamlink.WithExecutor(exec)}, opts...)
	client, err := streamlink.New("streamlink", 10*time.Second, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := streamlink.New(" ", time.Second); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestProbeLive(t *testing.T) {
	exec := &stubExecutor{result: procrun.Result{Stdout: `{"plugin":"twitch","streams":{"best":{"type":"hls"},"720p":{"type":"hls"}}}`}}
	client := newClient(t, exec)

	live, err := client.Probe(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if !live {
		t.Fatal("expected live")
	}
	cmd := exec.cmds[0]
	if want := []string{"--json", "https://twitch.tv/alice"}; !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
	if cmd.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %s", cmd.Timeout)
	}
}

func TestProbeOfflineAnswers(t *testing.T) {
	cases := []procrun.Result{
		{ExitCode: 1, Stdout: `{"error":"No playable streams found on this URL: https://twitch.tv/alice"}`},
		{ExitCode: 0, Stdout: `{"streams":{}}`},
	}
	for _, res := range cases {
		live, err := newClient(t, &stubExecutor{result: res}).Probe(context.Background(), "alice")
		if err != nil {
			t.Fatalf("Probe(%+v) returned error: %v", res, err)
		}
		if live {
			t.Fatalf("Probe(%+v) reported live", res)
		}
	}
}

func TestProbeFailures(t *testing.T) {
	cases := []struct {
		name   string
		exec   *stubExecutor
		kind   streamlink.FailureKind
		marker error
	}{
		{"timeout", &stubExecutor{result: procrun.Result{TimedOut: true, ExitCode: -1}}, streamlink.FailureTimeout, services.ErrTimeout},
		{"exit", &stubExecutor{result: procrun.Result{ExitCode: 2, Stderr: "error: network unreachable\n"}}, streamlink.FailureExitCode, services.ErrTransient},
		{"malformed", &stubExecutor{result: procrun.Result{Stdout: "<html>"}}, streamlink.FailureMalformed, services.ErrTransient},
		{"spawn", &stubExecutor{err: errors.New("executable file not found")}, streamlink.FailureSpawn, services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newClient(t, tc.exec).Probe(context.Background(), "alice")
			var probeErr *streamlink.ProbeError
			if !errors.As(err, &probeErr) {
				t.Fatalf("expected ProbeError, got %v", err)
			}
			if probeErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, probeErr.Kind)
			}
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected marker %v in %v", tc.marker, err)
			}
		})
	}
}

func TestCaptureCommand(t *testing.T) {
	client := newClient(t, &stubExecutor{},
		streamlink.WithURLTemplate("https://example.tv/{channel}/live"),
		streamlink.WithQuality("720p"),
		streamlink.WithExtraArgs([]string{"--twitch-disable-ads"}),
	)
	cmd := client.CaptureCommand("bob", "/rec/bob_20240102_030405.ts")
	want := []string{"--twitch-disable-ads", "https://example.tv/bob/live", "720p", "-o", "/rec/bob_20240102_030405.ts"}
	if cmd.Binary != "streamlink" || !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("unexpected capture command: %s", cmd)
	}
}
