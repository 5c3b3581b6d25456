package cmd

import "testing"

func TestCheckPrerequisitesSkipped(t *testing.T) {
	orig := skipPrereq
	defer func() { skipPrereq = orig }()

	skipPrereq = true
	if err := checkPrerequisites("/path/does/not/exist"); err != nil {
		t.Errorf("checkPrerequisites with skipPrereq=true = %v, want nil", err)
	}
}

func TestCheckPrerequisitesRejectsMissingExecutable(t *testing.T) {
	orig := skipPrereq
	defer func() { skipPrereq = orig }()

	skipPrereq = false
	if err := checkPrerequisites("/path/does/not/exist"); err == nil {
		t.Error("checkPrerequisites should fail for a nonexistent executable")
	}
}
