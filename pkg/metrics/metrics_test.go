package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	labels := Labels{"instance": "test"}
	c := NewCollector(labels)

	if c == nil {
		t.Fatal("expected non-nil collector")
	}

	snap := c.Snapshot()
	if snap.Labels["instance"] != "test" {
		t.Errorf("expected label instance=test, got %v", snap.Labels)
	}
	if snap.Encrypts != 0 || snap.Decrypts != 0 {
		t.Errorf("expected zero counters, got %+v", snap)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector(nil)
	b := NewCollector(nil)

	a.RecordEncrypt(time.Millisecond)

	if got := b.Snapshot().Encrypts; got != 0 {
		t.Errorf("expected separate registries, b saw %d encrypts", got)
	}
}

func TestCollectorOperationMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordEncrypt(200 * time.Microsecond)
	c.RecordEncrypt(300 * time.Microsecond)
	c.RecordDecrypt(400 * time.Microsecond)

	snap := c.Snapshot()
	if snap.Encrypts != 2 {
		t.Errorf("expected 2 encrypts, got %d", snap.Encrypts)
	}
	if snap.Decrypts != 1 {
		t.Errorf("expected 1 decrypt, got %d", snap.Decrypts)
	}
	if snap.EncryptLatency.Count != 2 {
		t.Errorf("expected 2 encrypt latency samples, got %d", snap.EncryptLatency.Count)
	}
	if want := 250e-6; snap.EncryptLatency.Mean < want*0.99 || snap.EncryptLatency.Mean > want*1.01 {
		t.Errorf("expected mean encrypt latency %g, got %g", want, snap.EncryptLatency.Mean)
	}
	if snap.DecryptLatency.Count != 1 {
		t.Errorf("expected 1 decrypt latency sample, got %d", snap.DecryptLatency.Count)
	}
}

func TestCollectorKEMLatency(t *testing.T) {
	c := NewCollector(nil)

	c.RecordEncapsulate(30 * time.Microsecond)
	c.RecordDecapsulate(40 * time.Microsecond)
	c.RecordDecapsulate(2 * time.Millisecond)

	snap := c.Snapshot()
	if snap.EncapsulateLatency.Count != 1 {
		t.Errorf("expected 1 encapsulation, got %d", snap.EncapsulateLatency.Count)
	}
	if snap.DecapsulateLatency.Count != 2 {
		t.Errorf("expected 2 decapsulations, got %d", snap.DecapsulateLatency.Count)
	}

	// Buckets are cumulative and sorted.
	buckets := snap.DecapsulateLatency.Buckets
	if len(buckets) != len(KEMLatencyBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(KEMLatencyBuckets), len(buckets))
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i].UpperBound <= buckets[i-1].UpperBound {
			t.Error("buckets not sorted")
		}
		if buckets[i].Count < buckets[i-1].Count {
			t.Error("bucket counts not cumulative")
		}
	}
	if last := buckets[len(buckets)-1]; last.Count != 2 {
		t.Errorf("expected both samples under %gs, got %d", last.UpperBound, last.Count)
	}
}

func TestCollectorErrorMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordDecryptError("open")
	c.RecordDecryptError("open")
	c.RecordDecryptError("decapsulate")
	c.RecordEncryptError("encapsulate")

	snap := c.Snapshot()
	if snap.DecryptErrors["open"] != 2 {
		t.Errorf("expected 2 open failures, got %d", snap.DecryptErrors["open"])
	}
	if snap.DecryptErrors["decapsulate"] != 1 {
		t.Errorf("expected 1 decapsulate failure, got %d", snap.DecryptErrors["decapsulate"])
	}
	if snap.TotalDecryptErrors() != 3 {
		t.Errorf("expected 3 decrypt failures, got %d", snap.TotalDecryptErrors())
	}
	if snap.TotalEncryptErrors() != 1 {
		t.Errorf("expected 1 encrypt failure, got %d", snap.TotalEncryptErrors())
	}
}

func TestCollectorSecurityMetrics(t *testing.T) {
	c := NewCollector(nil)

	c.RecordAuthFailure()
	c.RecordAuthFailure()
	c.RecordDecapsulationFailure()
	c.RecordKeyPairGenerated()

	snap := c.Snapshot()
	if snap.AuthFailures != 2 {
		t.Errorf("expected 2 auth failures, got %d", snap.AuthFailures)
	}
	if snap.DecapsulationFailures != 1 {
		t.Errorf("expected 1 decapsulation failure, got %d", snap.DecapsulationFailures)
	}
	if snap.KeyPairsGenerated != 1 {
		t.Errorf("expected 1 keypair, got %d", snap.KeyPairsGenerated)
	}
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordEncrypt(time.Microsecond)
				c.RecordDecryptError("open")
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Encrypts != 1000 {
		t.Errorf("expected 1000 encrypts, got %d", snap.Encrypts)
	}
	if snap.DecryptErrors["open"] != 1000 {
		t.Errorf("expected 1000 open failures, got %d", snap.DecryptErrors["open"])
	}
}

func TestSnapshotUptime(t *testing.T) {
	c := NewCollector(nil)
	time.Sleep(10 * time.Millisecond)

	if snap := c.Snapshot(); snap.Uptime < 10*time.Millisecond {
		t.Errorf("expected uptime >= 10ms, got %v", snap.Uptime)
	}
}

func TestGlobalCollector(t *testing.T) {
	if Global() == nil {
		t.Fatal("expected global collector")
	}

	custom := NewCollector(Labels{"instance": "custom"})
	SetGlobal(custom)
	if Global() != custom {
		t.Error("expected SetGlobal to replace the global collector")
	}
}
