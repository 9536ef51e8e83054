package shared

import (
	"errors"
	"reflect"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos     string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{goos: "darwin", wantName: "open", wantArgs: []string{"http://x"}},
		{goos: "linux", wantName: "xdg-open", wantArgs: []string{"http://x"}},
		{goos: "windows", wantName: "cmd", wantArgs: []string{"/c", "start", "http://x"}},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, "http://x")
			if tt.wantErr {
				if !errors.Is(err, ErrServiceUnavailable) {
					t.Fatalf("expected ErrServiceUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("browserCommand() = %s %v, want %s %v", name, args, tt.wantName, tt.wantArgs)
			}
		})
	}
}
