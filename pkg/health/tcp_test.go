package health

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPCheckerHealthyEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	result := NewTCPChecker(ln.Addr().String()).Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy, got unhealthy: %s", result.Message)
	}
}

func TestTCPCheckerUnreachableAddress(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1").WithTimeout(200 * time.Millisecond)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Errorf("expected unhealthy for unreachable address, got healthy: %s", result.Message)
	}
}

func TestTCPCheckerType(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1")
	if checker.Type() != CheckTypeTCP {
		t.Errorf("expected type %s, got %s", CheckTypeTCP, checker.Type())
	}
}
