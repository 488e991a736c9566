package arena

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/bodgit/arena/cfa"
)

// catalogue decodes file and records it relative to root. A file that can't
// be read or decoded, including one removed since it was found, is treated
// as unavailable and only logged. Only catalogue errors are returned.
func (a *Arena) catalogue(root, file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		a.logger.Printf("Unable to read \"%s\": %v\n", file, err)
		return nil
	}

	f, err := cfa.Load(b)
	if err != nil {
		a.logger.Printf("Unable to decode \"%s\": %v\n", file, err)
		return nil
	}

	if _, err := a.db.Add(assetName(root, file), Checksum(b), f); err != nil {
		return err
	}
	a.logger.Printf("Catalogued \"%s\", %d frames of %dx%d\n", file, f.Len(), f.Width(), f.Height())

	return nil
}

func (a *Arena) findFiles(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !isCFA(file) {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (a *Arena) fileWorker(ctx context.Context, root string, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := a.catalogue(root, file); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

// waitForPipeline returns the first error reported by any stage, calling
// cancel so the remaining stages wind down, or nil once every stage is done.
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var (
		once  sync.Once
		first error
		wg    sync.WaitGroup
	)
	wg.Add(len(errs))
	for _, errc := range errs {
		go func(errc <-chan error) {
			defer wg.Done()
			for err := range errc {
				if err != nil {
					once.Do(func() {
						first = err
						cancel()
					})
				}
			}
		}(errc)
	}
	wg.Wait()
	return first
}

// Scan walks path and catalogues every CFA file found beneath it.
func (a *Arena) Scan(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := a.findFiles(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < a.workers; i++ {
		errc, err := a.fileWorker(ctx, dir, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(cancelFunc, errcList...)
}
