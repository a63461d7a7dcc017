package mcperr_test

import (
	"errors"
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

func TestMap_DeterministicCodesPerSpecTable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind mcperr.Kind
		code int
	}{
		{mcperr.InvalidArguments, mcperr.CodeInvalidParams},
		{mcperr.PathTraversal, mcperr.CodeInvalidRequest},
		{mcperr.OutsideRoot, mcperr.CodeInvalidRequest},
		{mcperr.BlockedPattern, mcperr.CodeInvalidRequest},
		{mcperr.NotFound, mcperr.CodeInvalidRequest},
		{mcperr.ToolNotFound, mcperr.CodeInvalidRequest},
		{mcperr.ToolDisabled, mcperr.CodeInvalidRequest},
		{mcperr.UnsupportedProtocolVersion, mcperr.CodeInvalidRequest},
		{mcperr.NotInitialized, mcperr.CodeInvalidRequest},
		{mcperr.Timeout, mcperr.CodeInternalError},
		{mcperr.ConcurrencyLimitExceeded, mcperr.CodeInternalError},
		{mcperr.PermissionDenied, mcperr.CodeInternalError},
		{mcperr.InternalError, mcperr.CodeInternalError},
		{mcperr.InvalidFrame, mcperr.CodeParseError},
	}

	for _, c := range cases {
		payload := mcperr.Map(mcperr.New(c.kind, "boom"), false)
		if payload.Code != c.code {
			t.Errorf("Map(%s).Code = %d, want %d", c.kind, payload.Code, c.code)
		}
		if payload.Data["errorCode"] != string(c.kind) {
			t.Errorf("Map(%s).Data[errorCode] = %v, want %s", c.kind, payload.Data["errorCode"], c.kind)
		}
	}
}

func TestMap_NonTaxonomyErrorBecomesInternalError(t *testing.T) {
	t.Parallel()
	payload := mcperr.Map(errors.New("plain error"), false)
	if payload.Code != mcperr.CodeInternalError {
		t.Errorf("Code = %d, want %d", payload.Code, mcperr.CodeInternalError)
	}
	if payload.Data["errorCode"] != string(mcperr.InternalError) {
		t.Errorf("Data[errorCode] = %v, want %s", payload.Data["errorCode"], mcperr.InternalError)
	}
}

func TestMap_IncludesStackOnlyWhenRequested(t *testing.T) {
	t.Parallel()
	cause := errors.New("root cause")
	err := mcperr.Wrap(mcperr.InternalError, "wrapped", cause)

	withStack := mcperr.Map(err, true)
	if withStack.Data["stack"] != cause.Error() {
		t.Errorf("Data[stack] = %v, want %q", withStack.Data["stack"], cause.Error())
	}

	withoutStack := mcperr.Map(err, false)
	if _, ok := withoutStack.Data["stack"]; ok {
		t.Error("Data[stack] present when includeStack=false")
	}
}

func TestWithContext_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()
	base := mcperr.New(mcperr.NotFound, "missing")
	derived := base.WithContext("path", "/a/b")

	if len(base.Context) != 0 {
		t.Errorf("base.Context mutated: %v", base.Context)
	}
	if derived.Context["path"] != "/a/b" {
		t.Errorf("derived.Context[path] = %v, want /a/b", derived.Context["path"])
	}
}

func TestKindOf_NonTaxonomyErrorIsInternalError(t *testing.T) {
	t.Parallel()
	if got := mcperr.KindOf(errors.New("plain")); got != mcperr.InternalError {
		t.Errorf("KindOf(plain) = %s, want %s", got, mcperr.InternalError)
	}
	if got := mcperr.KindOf(mcperr.New(mcperr.Timeout, "slow")); got != mcperr.Timeout {
		t.Errorf("KindOf(Timeout) = %s, want %s", got, mcperr.Timeout)
	}
}
