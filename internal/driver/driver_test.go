package driver

import "testing"

func TestFilterRunnerDriverEnvStripsRunnerVars(t *testing.T) {
	in := []string{
		"TGRUSTC_RUNNER_DRIVER_MODE=1",
		"TGRUSTC_RUNNER_SOURCE=/src",
		"TGRUSTC_RUNNER_MANIFEST_SUBPATH=sub",
		"PATH=/usr/bin",
	}
	out := filterRunnerDriverEnv(in)
	if len(out) != 1 || out[0] != "PATH=/usr/bin" {
		t.Fatalf("filterRunnerDriverEnv = %v", out)
	}
}

func TestRequiredEnvMissing(t *testing.T) {
	t.Setenv("TGPROXY_TEST_DRIVER_UNSET", "")
	if _, err := requiredEnv("TGPROXY_TEST_DRIVER_UNSET_NEVER_SET"); err == nil {
		t.Fatal("expected error for unset env var")
	}
}

func TestRequiredEnvPresent(t *testing.T) {
	t.Setenv("TGPROXY_TEST_DRIVER_SET", "value")
	v, err := requiredEnv("TGPROXY_TEST_DRIVER_SET")
	if err != nil {
		t.Fatalf("requiredEnv: %v", err)
	}
	if v != "value" {
		t.Fatalf("requiredEnv = %q", v)
	}
}
