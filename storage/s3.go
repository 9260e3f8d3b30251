package storage

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"
)

// S3 object keys are at most 1024 bytes long.
const maxObjectKeyLength = 1024

// S3Store is an implementation of Store backed by AWS S3, one object per key.
// The bucket must not be shared with other writers: the previous value
// returned by Put is only accurate if this store is the only one writing.
type S3Store struct {
	bucket string
	client s3iface.S3API

	// Serializes puts, so reading the previous object and writing the new one
	// happen as a unit.
	mu sync.Mutex
}

func NewS3Store(profile, region, bucket string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewSharedCredentials("", profile),
	})
	if err != nil {
		return nil, err
	}
	return NewS3StoreWithClient(s3.New(sess), bucket), nil
}

func NewS3StoreWithClient(client s3iface.S3API, bucket string) *S3Store {
	return &S3Store{
		bucket: bucket,
		client: client,
	}
}

func (s *S3Store) Put(key, value []byte) (previous []byte, replaced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, err = s.get(key)
	switch {
	case err == nil:
		replaced = true
	case errors.Is(err, ErrNotFound):
		previous = nil
	default:
		return nil, false, err
	}
	_, err = s.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(key)),
		Body:   bytes.NewReader(dup(value)),
	})
	if err != nil {
		return nil, false, fmt.Errorf("could not put %.40q: %w", key, err)
	}
	return previous, replaced, nil
}

func (s *S3Store) Get(key []byte) (value []byte, err error) {
	return s.get(key)
}

func (s *S3Store) get(key []byte) (value []byte, err error) {
	objKey := objectKey(key)
	output, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if rfErr, ok := err.(awserr.RequestFailure); ok {
			if rfErr.StatusCode() == http.StatusNotFound {
				return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
			}
		}
		return nil, fmt.Errorf("could not get %.40q: %w", key, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			log.WithFields(log.Fields{
				"op":  "get",
				"key": objKey,
			}).Warning("Could not close response body")
		}
	}()
	value, err = ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read %.40q: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Size lists the whole bucket, one request per thousand keys.
func (s *S3Store) Size() (int, error) {
	var n int
	err := s.client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		n += len(page.Contents)
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("could not list %q: %w", s.bucket, err)
	}
	return n, nil
}

// objectKey hex-encodes the key, and hashes it if that's too long for S3. The
// "h-" prefix keeps hashed keys apart from hex ones, which have no dash.
func objectKey(key []byte) string {
	hexKey := fmt.Sprintf("%x", key)
	if len(hexKey) <= maxObjectKeyLength {
		return hexKey
	}
	return fmt.Sprintf("h-%x", sha512.Sum512(key))
}
