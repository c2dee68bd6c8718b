//go:build unix

package spawn

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"syscall"
	"testing"
)

func TestReadReport(t *testing.T) {
	full := report{errno: syscall.EACCES, step: stepSetuid}.encode()
	tests := []struct {
		name     string
		data     []byte
		wantFail bool
		want     report
	}{
		{"exec succeeded", nil, false, report{}},
		{"full report", full, true, report{errno: syscall.EACCES, step: stepSetuid}},
		{"errno only", full[:4], true, report{errno: syscall.EACCES}},
		{"torn errno", full[:2], true, report{errno: syscall.EPIPE}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, failed, err := readReport(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("readReport: %v", err)
			}
			if failed != tt.wantFail || got != tt.want {
				t.Errorf("readReport = %+v, %v; want %+v, %v", got, failed, tt.want, tt.wantFail)
			}
		})
	}
}

func TestHelperStep_String(t *testing.T) {
	if got := stepChdir.String(); got != "chdir" {
		t.Errorf("stepChdir = %q", got)
	}
	if got := helperStep(0).String(); got != "helper" {
		t.Errorf("step 0 = %q", got)
	}
	if got := helperStep(99).String(); got != "helper" {
		t.Errorf("step 99 = %q", got)
	}
}

func TestCredential(t *testing.T) {
	if credential(nil) != nil || credential(&Identity{}) != nil {
		t.Error("empty identity produced a credential")
	}
	gid := uint32(42)
	cred := credential(&Identity{GID: &gid})
	if cred.Gid != 42 || !cred.NoSetGroups {
		t.Errorf("credential = %+v", cred)
	}
	cred = credential(&Identity{Groups: []uint32{7, 8}})
	if cred.NoSetGroups || len(cred.Groups) != 2 {
		t.Errorf("credential = %+v", cred)
	}
}

func TestAwaitHelper(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"ready", []byte{helperReady}, nil},
		{"ready then report", append([]byte{helperReady}, report{errno: syscall.ENOENT}.encode()...), nil},
		{"exited without init", nil, errNoInit},
		{"foreign output", []byte("hello"), syscall.EPROTO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := awaitHelper(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("awaitHelper = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHelperPlan_KeepsInvalidUTF8(t *testing.T) {
	req := &Request{
		Path: "/tmp/\xff",
		Args: []string{"prog", "a\xffb\xfe"},
		Dir:  "/tmp/\xfe",
	}
	env := []string{"K=\x80\x81"}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(newHelperPlan(req, env, modeDirect)); err != nil {
		t.Fatal(err)
	}
	var got helperPlan
	if err := json.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if string(got.Path) != req.Path || string(got.Dir) != req.Dir {
		t.Errorf("path, dir = %q, %q", got.Path, got.Dir)
	}
	if args := toStrings(got.Args); !slices.Equal(args, req.Args) {
		t.Errorf("args = %q, want %q", args, req.Args)
	}
	if e := toStrings(got.Env); !slices.Equal(e, env) {
		t.Errorf("env = %q, want %q", e, env)
	}
}

func TestHelperPlan_PartialIdentity(t *testing.T) {
	gid := uint32(42)
	plan := newHelperPlan(&Request{Path: "/bin/true", Args: []string{"true"}, Identity: &Identity{GID: &gid}}, nil, modeExecInPlace)
	if plan.UID == nil || *plan.UID != uint32(os.Getuid()) {
		t.Errorf("UID = %v, want caller's %d", plan.UID, os.Getuid())
	}
	if plan.GID == nil || *plan.GID != 42 {
		t.Errorf("GID = %v, want 42", plan.GID)
	}
	if plan.Groups != nil {
		t.Errorf("Groups = %v, want untouched", plan.Groups)
	}

	plan = newHelperPlan(&Request{Path: "/bin/true", Args: []string{"true"}}, nil, modeExecInPlace)
	if plan.UID != nil || plan.GID != nil {
		t.Errorf("identity set without one requested: %+v", plan)
	}
}
