package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	keys   []string
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

type recorder struct {
	got []Result
	err error
}

func (r *recorder) Archive(_ context.Context, res Result) error {
	r.got = append(r.got, res)
	return r.err
}

func TestS3ArchiverUploadsCSV(t *testing.T) {
	fp := &fakePutter{}
	a := newS3Archiver(fp, "bucket", "races")
	res := Result{RaceID: 77, Name: "Weekly", CSV: []byte("Runner,Time,VOD\n"), Filename: "Weekly_leaderboard.csv"}

	require.NoError(t, a.Archive(context.Background(), res))
	assert.Equal(t, []string{"races/77/Weekly_leaderboard.csv"}, fp.keys)
	assert.Equal(t, []string{"Runner,Time,VOD\n"}, fp.bodies)
}

func TestS3ArchiverError(t *testing.T) {
	a := newS3Archiver(&fakePutter{err: errors.New("denied")}, "bucket", "")
	err := a.Archive(context.Background(), Result{RaceID: 1, Filename: "x.csv"})
	assert.ErrorContains(t, err, "1/x.csv")
}

func TestMultiRunsEverySink(t *testing.T) {
	first := &recorder{err: errors.New("sheet down")}
	second := &recorder{}
	err := Multi{first, second}.Archive(context.Background(), Result{RaceID: 5})

	assert.ErrorContains(t, err, "sheet down")
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)
	assert.NoError(t, Multi{}.Archive(context.Background(), Result{}))
	assert.NoError(t, Nop{}.Archive(context.Background(), Result{}))
}

func TestNewS3ArchiverNeedsBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), S3Config{})
	assert.Error(t, err)
}
