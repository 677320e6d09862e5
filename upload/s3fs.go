package upload

import (
	"bytes"
	"io/fs"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3FS presents the keys under a prefix of an S3 bucket as a read-only file
// tree. Key segments separated by "/" are treated as directories.
type S3FS struct {
	svc    s3iface.S3API
	Bucket string
	Prefix string
}

var (
	_ fs.ReadDirFS  = &S3FS{}
	_ fs.ReadFileFS = &S3FS{}
	_ fs.StatFS     = &S3FS{}
)

// NewS3FS returns the tree under prefix in bucket. A non-empty prefix should
// end with a slash.
func NewS3FS(svc s3iface.S3API, bucket, prefix string) *S3FS {
	return &S3FS{svc: svc, Bucket: bucket, Prefix: prefix}
}

func (s *S3FS) key(name string) string {
	if name == "." {
		return s.Prefix
	}
	return s.Prefix + name
}

func (s *S3FS) dirkey(name string) string {
	if name == "." {
		return s.Prefix
	}
	return s.Prefix + name + "/"
}

// ReadDir lists one level of the tree, sorted by name.
func (s *S3FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	prefix := s.dirkey(name)
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	var result []fs.DirEntry
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, p := range page.CommonPrefixes {
				dir := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(p.Prefix), prefix), "/")
				result = append(result, &s3info{name: dir, dir: true})
			}
			for _, item := range page.Contents {
				key := aws.StringValue(item.Key)
				if key == prefix || strings.HasSuffix(key, "/") {
					// folder marker objects
					continue
				}
				result = append(result, &s3info{
					name:    strings.TrimPrefix(key, prefix),
					size:    aws.Int64Value(item.Size),
					modtime: aws.TimeValue(item.LastModified),
				})
			}
			return !lastpage
		})
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if len(result) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

// ReadFile returns the contents of the object for name.
func (s *S3FS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	out, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: translateS3Error(err)}
	}
	defer out.Body.Close()
	return ioutil.ReadAll(out.Body)
}

// Stat returns information on name, which is a file if an object has that
// exact key and a directory if any object has it as a prefix.
func (s *S3FS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	base := name[strings.LastIndex(name, "/")+1:]
	if name == "." {
		return &s3info{name: ".", dir: true}, nil
	}
	head, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return &s3info{
			name:    base,
			size:    aws.Int64Value(head.ContentLength),
			modtime: aws.TimeValue(head.LastModified),
		}, nil
	}
	if translateS3Error(err) != fs.ErrNotExist {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	list, err := s.svc.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket:  aws.String(s.Bucket),
		Prefix:  aws.String(s.dirkey(name)),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	if len(list.Contents) == 0 {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return &s3info{name: base, dir: true}, nil
}

// Open returns name as an fs.File. Files are read into memory in full.
func (s *S3FS) Open(name string) (fs.File, error) {
	info, err := s.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &s3file{info: info.(*s3info)}, nil
	}
	data, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &s3file{info: info.(*s3info), r: bytes.NewReader(data)}, nil
}

func translateS3Error(err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return fs.ErrNotExist
		}
	}
	return err
}

// s3info is both the fs.FileInfo and the fs.DirEntry for an object or
// directory.
type s3info struct {
	name    string
	size    int64
	modtime time.Time
	dir     bool
}

func (i *s3info) Name() string       { return i.name }
func (i *s3info) Size() int64        { return i.size }
func (i *s3info) ModTime() time.Time { return i.modtime }
func (i *s3info) IsDir() bool        { return i.dir }
func (i *s3info) Sys() interface{}   { return nil }

func (i *s3info) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0555
	}
	return 0444
}

func (i *s3info) Type() fs.FileMode           { return i.Mode().Type() }
func (i *s3info) Info() (fs.FileInfo, error) { return i, nil }

type s3file struct {
	info *s3info
	r    *bytes.Reader // nil for directories
}

func (f *s3file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *s3file) Close() error               { return nil }

func (f *s3file) Read(p []byte) (int, error) {
	if f.r == nil {
		return 0, &fs.PathError{Op: "read", Path: f.info.name, Err: fs.ErrInvalid}
	}
	return f.r.Read(p)
}
