package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseLoad,
				Kind:    KindModuleLoad,
				Subject: "http://example.org/amp",
				Path:    "/lib/amp.wasm",
				Detail:  "compile failed",
			},
			contains: []string{"[load]", "module_load", "<http://example.org/amp>", "/lib/amp.wasm", "compile failed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLifecycle,
				Kind:  KindInvalidState,
			},
			contains: []string{"[lifecycle]", "invalid_state"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseState,
				Kind:   KindStateFailure,
				Detail: "save failed",
				Cause:  stderrors.New("underlying error"),
			},
			contains: []string{"[state]", "state_failure", "save failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := ModuleLoad("/x.so", cause)

	if !stderrors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !Is(err, cause) {
		t.Error("Is did not find cause in chain")
	}
}

func TestError_IsSentinels(t *testing.T) {
	tests := []struct {
		err      error
		target   error
		name     string
		expected bool
	}{
		{PluginNotFound("urn:a", "/m"), ErrPluginNotFound, "not found", true},
		{PluginNotFound("urn:a", "/m"), ErrRefused, "not found is not refusal", false},
		{Refused("urn:a"), ErrRefused, "refused", true},
		{ModuleLoad("/m", nil), ErrModuleLoad, "module load", true},
		{MissingEntryPoint("/m", "lv2_run"), ErrMissingEntryPoint, "entry point", true},
		{PortIndex(PhaseLifecycle, "urn:a", 5, 2), ErrPortIndex, "port index any phase", true},
		{PortIndex(PhaseState, "urn:a", 5, 2), ErrPortIndex, "port index state phase", true},
		{Unsupported(PhaseState, "x"), ErrUnsupported, "unsupported", true},
		{fmt.Errorf("wrapped: %w", Refused("urn:a")), ErrRefused, "wrapped refusal", true},
		{stderrors.New("plain"), ErrRefused, "plain error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsLoadError(PluginNotFound("urn:a", "/m")) {
		t.Error("plugin not found should be a load error")
	}
	if !IsLoadError(MissingEntryPoint("/m", "lv2_descriptor")) {
		t.Error("missing entry point should be a load error")
	}
	if IsLoadError(Refused("urn:a")) {
		t.Error("refusal should not be a load error")
	}
	if !IsRefusal(fmt.Errorf("ctx: %w", Refused("urn:a"))) {
		t.Error("wrapped refusal not detected")
	}
	if IsLoadError(nil) || IsRefusal(nil) {
		t.Error("nil is neither")
	}
}

func TestBuilder(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(PhaseState, KindBadKey).
		Subject("urn:plugin").
		Path("/tmp/state").
		Value(uint32(0)).
		Cause(cause).
		Detail("key %d rejected", 0).
		Build()

	if err.Phase != PhaseState || err.Kind != KindBadKey {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Subject != "urn:plugin" || err.Path != "/tmp/state" {
		t.Errorf("subject/path not set: %+v", err)
	}
	if err.Value != uint32(0) {
		t.Errorf("value = %v", err.Value)
	}
	if err.Detail != "key 0 rejected" {
		t.Errorf("detail = %q", err.Detail)
	}
	if !Is(err, ErrBadKey) || !Is(err, cause) {
		t.Error("builder error does not match sentinel and cause")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		name  string
		phase Phase
		kind  Kind
	}{
		{Discovery("/b/manifest.ttl", nil), "discovery", PhaseDiscover, KindInvalidData},
		{ParseFailed("manifest", nil), "parse", PhaseParse, KindInvalidData},
		{InvalidState("run", "freed"), "invalid state", PhaseLifecycle, KindInvalidState},
		{NotFound(PhaseQuery, "variable", "x"), "not found", PhaseQuery, KindNotFound},
		{InvalidInput(PhaseQuery, "bad"), "invalid input", PhaseQuery, KindInvalidInput},
		{IO(PhaseState, "/x", nil), "io", PhaseState, KindIO},
		{Wrap(PhaseLoad, KindModuleLoad, nil, "x"), "wrap", PhaseLoad, KindModuleLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
		})
	}
}
