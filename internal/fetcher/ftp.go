package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads source exports from FTP servers. Credentials come from
// the URL userinfo; servers without one get an anonymous login.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// ftpTarget is a parsed ftp:// URL.
type ftpTarget struct {
	addr     string
	user     string
	password string
	path     string
}

// parseFTPURL splits an FTP URL into dial address, credentials, and remote
// path. The port defaults to 21 when the URL carries none.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return ftpTarget{}, eris.New("empty path in ftp url")
	}

	t := ftpTarget{
		addr:     u.Host,
		user:     "anonymous",
		password: "anonymous@",
		path:     u.Path,
	}
	if _, _, splitErr := net.SplitHostPort(t.addr); splitErr != nil {
		t.addr = net.JoinHostPort(t.addr, "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}

	return t, nil
}

// dial connects and authenticates. The caller owns the returned connection.
func (f *FTPFetcher) dial(ctx context.Context, target ftpTarget) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(target.addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}

	if err := conn.Login(target.user, target.password); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}

	return conn, nil
}

// ftpFile is an open remote file. Closing it releases both the data transfer
// and the control connection.
type ftpFile struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (f *ftpFile) Read(p []byte) (int, error) {
	return f.resp.Read(p)
}

// Close ends the transfer first, then quits the control connection. Both run
// even when the first fails.
func (f *ftpFile) Close() error {
	respErr := f.resp.Close()
	quitErr := f.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp transfer")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Download retrieves the file behind an ftp:// URL. The caller must close the
// returned ReadCloser to release the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	target, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: fetching",
		zap.String("addr", target.addr),
		zap.String("user", target.user),
		zap.String("path", target.path),
	)

	conn, err := f.dial(ctx, target)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(target.path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "ftp retrieve %s", target.path)
	}

	return &ftpFile{resp: resp, conn: conn}, nil
}
