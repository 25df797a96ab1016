package db

import (
	"context"
	"errors"
	"testing"
)

func TestRunChecks(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	status, results := runChecks(context.Background(), []Check{{"database", ok}, {"redis", ok}})
	if status != "healthy" {
		t.Errorf("expected healthy, got %s", status)
	}
	if results["redis"] != "ok" {
		t.Errorf("expected redis ok, got %q", results["redis"])
	}

	status, results = runChecks(context.Background(), []Check{{"database", ok}, {"redis", fail}})
	if status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", status)
	}
	if results["redis"] != "connection refused" {
		t.Errorf("unexpected redis result %q", results["redis"])
	}
	if results["database"] != "ok" {
		t.Errorf("expected database ok, got %q", results["database"])
	}
}
