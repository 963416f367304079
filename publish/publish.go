// Package publish 把运行产物上传到 S3。
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"vid2sprite/config"
	"vid2sprite/logging"
)

var contentTypes = map[string]string{
	".png":  "image/png",
	".gif":  "image/gif",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// NewUploader 按区域创建 S3 上传器，凭证来自默认链（环境变量、共享配置等）
func NewUploader(region string) (s3manageriface.UploaderAPI, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3manager.NewUploader(sess), nil
}

// Key 由前缀与文件名拼出对象键
func Key(prefix, file string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(file)
	}
	return path.Join(prefix, filepath.Base(file))
}

// Upload 上传存在的产物，不存在的文件跳过。返回上传成功的数量。
func Upload(ctx context.Context, up s3manageriface.UploaderAPI, bucket, prefix string, files []string, log *logging.Logger) (int, error) {
	uploaded := 0
	var errs []error
	for _, f := range files {
		if ctx.Err() != nil {
			return uploaded, ctx.Err()
		}
		fh, err := os.Open(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug("publish: %s not produced, skipping", filepath.Base(f))
				continue
			}
			errs = append(errs, err)
			continue
		}

		key := Key(prefix, f)
		input := &s3manager.UploadInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   fh,
		}
		if ct, ok := contentTypes[strings.ToLower(filepath.Ext(f))]; ok {
			input.ContentType = aws.String(ct)
		}
		res, err := up.UploadWithContext(ctx, input)
		fh.Close()
		if err != nil {
			log.Warn("publish %s: %v", key, err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		log.Debug("publish: %s -> %s", filepath.Base(f), res.Location)
		uploaded++
	}
	return uploaded, errors.Join(errs...)
}

// Run 在配置了 S3Bucket 时上传全部产物
func Run(ctx context.Context, cfg config.Config, up s3manageriface.UploaderAPI, log *logging.Logger) error {
	if cfg.S3Bucket == "" {
		return nil
	}
	if up == nil {
		var err error
		if up, err = NewUploader(cfg.S3Region); err != nil {
			return err
		}
	}
	n, err := Upload(ctx, up, cfg.S3Bucket, cfg.S3Prefix, cfg.Layout().Artifacts(), log)
	if n > 0 {
		log.Success("Published %d files to s3://%s/%s", n, cfg.S3Bucket, strings.Trim(cfg.S3Prefix, "/"))
	}
	return err
}
