package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/apex/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PackageStore object storage for mission package payloads, keyed by content hash
type PackageStore interface {
	/*
		PutPackage store a mission package payload

			@param ctxt context.Context - execution context
			@param hash string - package content hash
			@param content []byte - package payload
	*/
	PutPackage(ctxt context.Context, hash string, content []byte) error

	/*
		GetPackage fetch a mission package payload

			@param ctxt context.Context - execution context
			@param hash string - package content hash
			@returns package payload
	*/
	GetPackage(ctxt context.Context, hash string) ([]byte, error)

	/*
		DeletePackage delete a mission package payload

			@param ctxt context.Context - execution context
			@param hash string - package content hash
	*/
	DeletePackage(ctxt context.Context, hash string) error
}

// s3PackageStoreImpl implements PackageStore on a S3 compatible object store
type s3PackageStoreImpl struct {
	goutils.Component
	s3           *minio.Client
	bucket       string
	objectPrefix string
}

/*
NewS3PackageStore define a new S3 backed mission package store

	@param config common.PackageStorageConfig - storage config
	@returns new store
*/
func NewS3PackageStore(config common.PackageStorageConfig) (PackageStore, error) {
	logTags := log.Fields{
		"module":    "utils",
		"component": "s3-package-store",
		"instance":  config.S3.ServerEndpoint,
	}

	options := &minio.Options{Secure: config.S3.UseTLS}
	if config.S3.Creds != nil {
		options.Creds = credentials.NewStaticV4(
			config.S3.Creds.AccessKey, config.S3.Creds.SecretAccessKey, "",
		)
	}

	// Define the core minio client
	client, err := minio.New(config.S3.ServerEndpoint, options)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define minio S3 client")
		return nil, err
	}

	return &s3PackageStoreImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		s3:           client,
		bucket:       config.StorageBucket,
		objectPrefix: config.StorageObjectPrefix,
	}, nil
}

// objectKey build the object key for a package content hash
func (s *s3PackageStoreImpl) objectKey(hash string) string {
	return fmt.Sprintf("%s/%s.zip", s.objectPrefix, hash)
}

func (s *s3PackageStoreImpl) PutPackage(
	ctxt context.Context, hash string, content []byte,
) error {
	logTags := s.GetLogTagsForContext(ctxt)
	_, err := s.s3.PutObject(
		ctxt,
		s.bucket,
		s.objectKey(hash),
		bytes.NewBuffer(content),
		int64(len(content)),
		minio.PutObjectOptions{SendContentMd5: true},
	)
	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("hash", hash).
			Error("Mission package upload failed")
		return err
	}
	log.WithFields(logTags).WithField("hash", hash).Info("Stored mission package payload")
	return nil
}

func (s *s3PackageStoreImpl) GetPackage(ctxt context.Context, hash string) ([]byte, error) {
	object, err := s.s3.GetObject(ctxt, s.bucket, s.objectKey(hash), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = object.Close() }()
	content, err := io.ReadAll(object)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *s3PackageStoreImpl) DeletePackage(ctxt context.Context, hash string) error {
	return s.s3.RemoveObject(ctxt, s.bucket, s.objectKey(hash), minio.RemoveObjectOptions{})
}
