package hub

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/gomlx/go-sentiment/internal/downloader"
	"github.com/gomlx/go-sentiment/internal/files"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// getDownloadManager returns the current downloader.Manager, or creates a new one for this Repo.
func (r *Repo) getDownloadManager() *downloader.Manager {
	if r.downloadManager == nil {
		r.downloadManager = downloader.New().MaxParallel(r.MaxParallelDownload).WithAuthToken(r.authToken)
	}
	return r.downloadManager
}

// DownloadFile makes sure the given repository file is in the local cache and
// returns its local path. Already-cached files return immediately.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileCtx(context.Background(), fileName, nil)
}

// DownloadFileCtx is like DownloadFile but honors ctx cancellation and reports
// progress through the optional callback.
func (r *Repo) DownloadFileCtx(ctx context.Context, fileName string, progress downloader.ProgressCallback) (string, error) {
	localPath := r.localPath(fileName)
	err := r.lockedDownload(ctx, r.FileURL(fileName), localPath, false, progress)
	if err != nil {
		return "", err
	}
	return localPath, nil
}

// DownloadFiles downloads several repository files, returning their local
// paths in the same order. The downloader caps parallelism at
// Repo.MaxParallelDownload.
func (r *Repo) DownloadFiles(ctx context.Context, fileNames ...string) ([]string, error) {
	r.getDownloadManager() // Materialize before the goroutines race to create it.
	localPaths := make([]string, len(fileNames))
	errs := make(chan error, len(fileNames))
	for ii, fileName := range fileNames {
		go func() {
			var err error
			localPaths[ii], err = r.DownloadFileCtx(ctx, fileName, nil)
			errs <- err
		}()
	}
	for range fileNames {
		if err := <-errs; err != nil {
			return nil, err
		}
	}
	return localPaths, nil
}

// lockedDownload fetches url to filePath.
//
// If filePath exists and forceDownload is false, it is assumed to have been
// correctly downloaded already and the call returns immediately.
//
// The file is downloaded to filePath+".downloading" and atomically renamed
// into place. A filePath+".lock" file coordinates multiple processes (and
// goroutines) fetching the same file at the same time.
func (r *Repo) lockedDownload(ctx context.Context, url, filePath string, forceDownload bool, progress downloader.ProgressCallback) error {
	if files.Exists(filePath) {
		if !forceDownload {
			return nil
		}
		if err := os.Remove(filePath); err != nil {
			return errors.Wrapf(err, "failed to remove %q while force-downloading %q", filePath, url)
		}
	}

	// Bail out early if the context was already cancelled.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		if files.Exists(filePath) {
			// Another process (or goroutine) won the race and downloaded it.
			return
		}

		tmpPath := filePath + ".downloading"
		mainErr = r.getDownloadManager().Download(ctx, url, tmpPath, progress)
		if mainErr != nil {
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			if files.Exists(tmpPath) {
				if err := os.Remove(tmpPath); err != nil {
					klog.Warningf("failed to remove partial download %q: %v", tmpPath, err)
				}
			}
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
			return
		}

		// The target exists now, the lock file served its purpose.
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("error removing lock file %q: %+v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

// execOnFileLock opens the lockPath file (creating it if needed), locks it and
// runs fn. If lockPath is already locked elsewhere it polls every 1 to 2
// seconds (randomized) until the lock is acquired.
//
// lockPath is not removed here. fn may remove it itself if it knows no further
// calls with the same lockPath will be made.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}

	// Unlock in a defer so it happens even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()
	return
}
