package operation

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreTrack(t *testing.T) {
	s := NewMemoryStore()

	tj, isNew, err := s.Track("abc")
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("first Track() should report a new job")
	}
	if tj.ID != "abc" || tj.State != StatePending {
		t.Errorf("tracked = %+v, want pending abc", tj.Job)
	}

	if _, isNew, _ := s.Track("abc"); isNew {
		t.Error("second Track() should report an existing job")
	}
	if got := len(s.List()); got != 1 {
		t.Errorf("List() = %d jobs, want 1", got)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	s.Track("abc")

	job := *NewJob("abc")
	job.succeed(NewMediaRefs([]string{"a.png"}))
	if err := s.Update(job); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("abc")
	if err != nil {
		t.Fatal(err)
	}
	got.Result.Artifacts[0].URL = "changed"

	again, _ := s.Get("abc")
	if again.Result.Artifacts[0].URL != "a.png" {
		t.Error("mutating a returned job changed the stored job")
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Update(*NewJob("missing")); err == nil {
		t.Error("Update() of an untracked job should fail")
	}

	s.Track("abc")
	failed := *NewJob("abc")
	failed.fail("boom")
	if err := s.Update(failed); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := s.Update(*NewJob("abc")); err == nil {
		t.Error("a failed job must not return to pending")
	}

	tj, _ := s.Get("abc")
	if tj.State != StateFailed || tj.Result.Error != "boom" {
		t.Errorf("stored = %+v", tj.Job)
	}
	if tj.UpdatedAt.Before(tj.CreatedAt) {
		t.Error("UpdatedAt precedes CreatedAt")
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	if _, err := NewMemoryStore().Get("nope"); err == nil {
		t.Error("Get() of an unknown id should fail")
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	s.Track("first")
	time.Sleep(2 * time.Millisecond)
	s.Track("second")

	jobs := s.List()
	if len(jobs) != 2 || jobs[0].ID != "second" || jobs[1].ID != "first" {
		t.Errorf("List() order = %v", ids(jobs))
	}
}

func TestMemoryStoreCapacityEvictsOldestFinished(t *testing.T) {
	s := NewMemoryStore(WithCapacity(2))
	s.Track("old")
	time.Sleep(2 * time.Millisecond)
	s.Track("running")

	done := *NewJob("old")
	done.succeed(nil)
	if err := s.Update(done); err != nil {
		t.Fatal(err)
	}

	if _, isNew, err := s.Track("new"); err != nil || !isNew {
		t.Fatalf("Track(new) = %v, %v; want a new job", isNew, err)
	}
	if _, err := s.Get("old"); err == nil {
		t.Error("the oldest finished job should have been evicted")
	}
	if _, err := s.Get("running"); err != nil {
		t.Error("a pending job must never be evicted")
	}
}

func TestMemoryStoreFullOfPendingJobs(t *testing.T) {
	s := NewMemoryStore(WithCapacity(1))
	s.Track("running")

	if _, _, err := s.Track("another"); !errors.Is(err, ErrStoreFull) {
		t.Errorf("Track() error = %v, want ErrStoreFull", err)
	}
	if _, isNew, err := s.Track("running"); err != nil || isNew {
		t.Errorf("re-tracking a known job = %v, %v; want existing job", isNew, err)
	}
}

func ids(jobs []TrackedJob) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}
