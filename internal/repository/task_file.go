package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// FileTaskStore keeps monitoring tasks in one JSON document that the
// processing scripts can read as well. Every mutation rewrites the whole
// document. Every operation holds an advisory lock on <path>.lock so the
// API server and a standalone scheduler can share the document.
type FileTaskStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTaskStore(path string) *FileTaskStore {
	return &FileTaskStore{path: path}
}

// lock serializes goroutines with the mutex and processes with the file
// lock. The returned func releases both.
func (s *FileTaskStore) lock() (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create tasks dir: %w", err)
	}
	fl := flock.New(s.path + ".lock")
	if err := fl.Lock(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("lock tasks: %w", err)
	}
	return func() {
		fl.Unlock()
		s.mu.Unlock()
	}, nil
}

// List returns the tasks in insertion order. A missing document is an
// empty collection.
func (s *FileTaskStore) List(_ context.Context) ([]model.MonitoringTask, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}

func (s *FileTaskStore) Append(_ context.Context, task model.MonitoringTask) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	return s.save(append(tasks, task))
}

func (s *FileTaskStore) Clear(_ context.Context) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.save([]model.MonitoringTask{})
}

// MarkChecked records the end of the last successful check window. It
// returns ErrNotFound when the task was removed in the meantime.
func (s *FileTaskStore) MarkChecked(_ context.Context, aoiID, date string) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].AOIID == aoiID {
			d := date
			tasks[i].LastCheckedDate = &d
			return s.save(tasks)
		}
	}
	return ErrNotFound
}

func (s *FileTaskStore) load() ([]model.MonitoringTask, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.MonitoringTask{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	if len(data) == 0 {
		return []model.MonitoringTask{}, nil
	}

	var tasks []model.MonitoringTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.MonitoringTask{}
	}
	return tasks, nil
}

func (s *FileTaskStore) save(tasks []model.MonitoringTask) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp tasks: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write tasks: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod tasks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tasks: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace tasks: %w", err)
	}
	return nil
}
