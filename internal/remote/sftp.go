package remote

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/pkg/sftp"
	xssh "golang.org/x/crypto/ssh"
)

// File is one artifact uploaded by a deployment.
type File struct {
	Name string
	Data []byte
}

// PushFiles writes each file into remoteDir over a single SFTP session.
func PushFiles(client *xssh.Client, remoteDir string, files []File) error {
	sf, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("sftp client: %w", err)
	}
	defer sf.Close()
	for _, f := range files {
		if err := write(sf, bytes.NewReader(f.Data), path.Join(remoteDir, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

func write(sf *sftp.Client, src io.Reader, remotePath string) error {
	if err := sf.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("mkdir remote: %w", err)
	}
	dst, err := sf.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", remotePath, err)
	}
	return nil
}
