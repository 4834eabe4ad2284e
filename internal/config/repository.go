package config

import (
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal"
	"github.com/turbolytics/duesync/internal/local"
	"github.com/turbolytics/duesync/internal/preserver"
	"github.com/turbolytics/duesync/internal/s3"
)

func parseArchive(connString string) (*url.URL, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return nil, fmt.Errorf("archive.connection_string: %w", err)
	}
	switch u.Scheme {
	case "s3", "file", "stdout":
		return u, nil
	default:
		return nil, fmt.Errorf("archive.connection_string: unknown repository scheme %q", u.Scheme)
	}
}

// NewRepository selects the archive repository from the connection string
// scheme. stdout:// prints archives instead of storing them. contentType is
// attached to uploaded objects where supported.
func NewRepository(a Archive, contentType string, logger *zap.Logger) (internal.Repository, error) {
	u, err := parseArchive(a.ConnectionString)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "stdout":
		return preserver.NewStdout(nil), nil
	case "file":
		if u.Path == "" {
			return nil, fmt.Errorf("archive.connection_string: file repository needs a path")
		}
		return local.New(
			u.Path,
			local.WithContainer(a.Container),
			local.WithLogger(logger),
		), nil
	default:
		q := u.Query()
		bucket := a.Container
		if bucket == "" {
			bucket = u.Host
		}
		opts := []s3.Option{
			s3.WithLogger(logger),
			s3.WithBucket(bucket),
			s3.WithRegion(q.Get("region")),
			s3.WithEndpoint(q.Get("endpoint")),
			s3.WithContentType(contentType),
		}
		if v := q.Get("force_path_style"); v != "" {
			force, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("archive.connection_string: force_path_style: %w", err)
			}
			opts = append(opts, s3.WithForcePathStyle(force))
		}
		if u.User != nil {
			secret, _ := u.User.Password()
			opts = append(opts, s3.WithStaticCredentials(u.User.Username(), secret))
		}
		return s3.New(opts...)
	}
}
