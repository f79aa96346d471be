package ffprobe

import (
	"context"
	"errors"
	"testing"

	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
)

func TestResultStreamQueries(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: Video, CodecName: "hevc"},
			{Index: 1, CodecType: Audio, CodecName: "aac"},
			{Index: 2, CodecType: Audio, CodecName: "opus"},
		},
		Format: Format{Duration: "123.45"},
	}
	if result.Count(Video) != 1 || result.Count(Audio) != 2 {
		t.Fatalf("unexpected counts: video=%d audio=%d", result.Count(Video), result.Count(Audio))
	}
	if audio, ok := result.First(Audio); !ok || audio.CodecName != "aac" {
		t.Fatalf("unexpected first audio: %+v %v", audio, ok)
	}
	if _, ok := (Result{}).First(Video); ok {
		t.Fatal("expected no video stream in empty result")
	}
	if d, ok := result.Duration(); !ok || d != 123.45 {
		t.Fatalf("unexpected duration: %v %v", d, ok)
	}
}

func TestNumberFloat(t *testing.T) {
	tests := []struct {
		in   Number
		want float64
		ok   bool
	}{
		{"42.5", 42.5, true},
		{" 7 ", 7, true},
		{"", 0, true},
		{"N/A", 0, true},
		{"bad", 0, false},
	}
	for _, tc := range tests {
		got, ok := tc.in.Float()
		if got != tc.want || ok != tc.ok {
			t.Errorf("Number(%q).Float() = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDurationRejectsMalformedContainerValue(t *testing.T) {
	if _, ok := (Result{Format: Format{Duration: "bad"}}).Duration(); ok {
		t.Fatal("expected malformed duration to be rejected")
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: Video, Duration: "9.5"}, {CodecType: Audio, Duration: "10.25"}}}
	if got, ok := result.Duration(); !ok || got != 10.25 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
}

type stubExecutor struct {
	result procrun.Result
	err    error
	cmds   []procrun.Command
}

func (s *stubExecutor) Run(_ context.Context, cmd procrun.Command) (procrun.Result, error) {
	s.cmds = append(s.cmds, cmd)
	return s.result, s.err
}

func TestProberInspectParsesOutput(t *testing.T) {
	exec := &stubExecutor{result: procrun.Result{Stdout: `{"streams":[{"codec_type":"video","codec_name":"h264","nb_frames":"1800"}],"format":{"duration":"60.0","size":"2048"}}`}}
	prober := New("", 0, exec)

	result, err := prober.Inspect(context.Background(), "/tmp/in.ts")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if d, _ := result.Duration(); d != 60 || result.Format.Size != "2048" || result.Count(Video) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if video, ok := result.First(Video); !ok || video.Frames != "1800" {
		t.Fatalf("expected nb_frames to decode, got %+v", result.Streams)
	}
	if len(exec.cmds) != 1 || exec.cmds[0].Binary != "ffprobe" {
		t.Fatalf("unexpected command: %+v", exec.cmds)
	}
	args := exec.cmds[0].Args
	if args[len(args)-1] != "/tmp/in.ts" || args[len(args)-2] != "--" {
		t.Fatalf("expected path after --, got %v", args)
	}
}

func TestProberInspectClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		exec   *stubExecutor
		marker error
	}{
		{"exit", &stubExecutor{result: procrun.Result{ExitCode: 1, Stderr: "Invalid data found"}}, services.ErrExternalTool},
		{"timeout", &stubExecutor{result: procrun.Result{TimedOut: true, ExitCode: -1}}, services.ErrTimeout},
		{"garbage", &stubExecutor{result: procrun.Result{Stdout: "not json"}}, services.ErrValidation},
		{"spawn", &stubExecutor{err: errors.New("exec: not found")}, services.ErrExternalTool},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("ffprobe", 0, tc.exec).Inspect(context.Background(), "/tmp/in.ts")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}
