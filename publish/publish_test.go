package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"vid2sprite/config"
	"vid2sprite/logging"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failKey string
}

func newFake() *fakeUploader {
	return &fakeUploader{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	key := aws.StringValue(in.Key)
	if key == f.failKey {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(in.Bucket)+"/"+key] = string(data)
	f.types[key] = aws.StringValue(in.ContentType)
	return &s3manager.UploadOutput{Location: "s3://" + aws.StringValue(in.Bucket) + "/" + key}, nil
}

func TestKey(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Key("", "/out/final_animation.gif")).To(Equal("final_animation.gif"))
	g.Expect(Key("/sprites/run1/", "/out/palette.json")).To(Equal("sprites/run1/palette.json"))
}

func testConfig(t *testing.T) config.Config {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.S3Bucket = "bucket"
	cfg.S3Prefix = "runs/a"
	return cfg
}

func TestRunUploadsExistingArtifacts(t *testing.T) {
	g := NewWithT(t)
	cfg := testConfig(t)
	l := cfg.Layout()
	g.Expect(os.WriteFile(l.SheetPath, []byte("sheet"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(l.GIFPath, []byte("gif"), 0o644)).To(Succeed())

	up := newFake()
	g.Expect(Run(context.Background(), cfg, up, logging.Discard())).To(Succeed())
	g.Expect(up.objects).To(Equal(map[string]string{
		"bucket/runs/a/final_spritesheet.png": "sheet",
		"bucket/runs/a/final_animation.gif":   "gif",
	}))
	g.Expect(up.types["runs/a/final_animation.gif"]).To(Equal("image/gif"))
}

func TestRunReportsFailures(t *testing.T) {
	g := NewWithT(t)
	cfg := testConfig(t)
	l := cfg.Layout()
	g.Expect(os.WriteFile(l.SheetPath, []byte("sheet"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(l.AtlasPath, []byte("{}"), 0o644)).To(Succeed())

	up := newFake()
	up.failKey = "runs/a/final_spritesheet.png"
	err := Run(context.Background(), cfg, up, logging.Discard())
	g.Expect(err).To(MatchError(ContainSubstring("access denied")))
	g.Expect(up.objects).To(HaveKey("bucket/runs/a/final_spritesheet.json"))
}

func TestRunWithoutBucketIsNoop(t *testing.T) {
	g := NewWithT(t)
	cfg := testConfig(t)
	cfg.S3Bucket = ""
	g.Expect(Run(context.Background(), cfg, nil, logging.Discard())).To(Succeed())
}
