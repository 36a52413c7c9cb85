package remote

import (
	"context"
	"fmt"
	"os"

	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

// Uploader publishes a built archive into a directory on the target host
type Uploader interface {
	Upload(ctx context.Context, archivePath, remoteDir string) error
}

// TarUploader streams the archive into tar running on a Shell
type TarUploader struct {
	shell  Shell
	logger logger.Logger
}

// NewTarUploader creates an uploader over shell
func NewTarUploader(shell Shell, log logger.Logger) *TarUploader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &TarUploader{shell: shell, logger: log.WithField("component", "upload")}
}

// Upload unpacks archivePath into remoteDir, creating it if needed
func (u *TarUploader) Upload(ctx context.Context, archivePath, remoteDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Upload("open archive", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Upload("stat archive", err)
	}

	dir := ShellQuote(remoteDir)
	command := fmt.Sprintf("mkdir -p %s && tar -xzf - -C %s", dir, dir)

	u.logger.InfoWithFields("Uploading archive", map[string]interface{}{
		"archive":    archivePath,
		"remote_dir": remoteDir,
		"bytes":      info.Size(),
	})

	if err := u.shell.RunWithInput(ctx, command, f); err != nil {
		return errors.Upload("unpack archive", err)
	}

	u.logger.Info("Upload complete")
	return nil
}
