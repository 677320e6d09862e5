package upload

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ErrNoBucket means an s3: location did not name a bucket.
var ErrNoBucket = errors.New("location has no bucket name")

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It makes sure the prefix returned is either empty or ends with a slash "/".
//
// examples:
// 		"" -> ("", "")
//		"bucket" -> ("bucket", "")
//		"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = v[1]
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// ParseLocation returns the file tree named by location, and the root to
// pass to Mapper.Upload. It understands plain paths, "file:" URLs and
// "s3:" URLs. For s3 the host, if any, is used as the endpoint, e.g.
// "s3://localhost:9000/bucket/prefix".
func ParseLocation(location string) (fs.FS, string, error) {
	if !strings.HasPrefix(location, "s3:") && !strings.HasPrefix(location, "file:") {
		return localTree(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme == "file" {
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return localTree(p)
	}

	conf := &aws.Config{}
	if u.Host != "" {
		conf.Endpoint = aws.String(u.Host)
		conf.Region = aws.String("us-east-1")
		// disable SSL for local development
		if strings.Contains(u.Host, "localhost") {
			conf.DisableSSL = aws.Bool(true)
			conf.S3ForcePathStyle = aws.Bool(true)
		}
	}
	bucket, prefix := splitBucketPrefix(u.Path)
	if bucket == "" {
		return nil, "", ErrNoBucket
	}
	return NewS3FS(s3.New(session.New(conf)), bucket, prefix), ".", nil
}

// localTree splits a local path so a single file can be uploaded as well as a
// directory.
func localTree(p string) (fs.FS, string, error) {
	if p == "" {
		p = "."
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, "", err
	}
	if fi.IsDir() {
		return os.DirFS(p), ".", nil
	}
	return os.DirFS(filepath.Dir(p)), path.Clean(filepath.ToSlash(filepath.Base(p))), nil
}
