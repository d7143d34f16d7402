package fetch

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"

    "github.com/aws/aws-sdk-go-v2/aws"
    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"
)

// Resolver materializes a document reference as a local file so the
// page counter can probe it. Supported forms:
//   - file://path or a plain filesystem path
//   - http:// and https:// URLs
//   - s3://bucket/key
// Remote content is downloaded into destDir, which the caller owns
// (normally a request work area, so teardown is automatic).
type Resolver struct {
    httpClient *http.Client
}

func NewResolver(client *http.Client) *Resolver {
    if client == nil {
        client = http.DefaultClient
    }
    return &Resolver{httpClient: client}
}

// Resolve returns a local path for ref. Fragments (#page=N) are ignored.
func (r *Resolver) Resolve(ctx context.Context, ref, destDir string) (string, error) {
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }

    switch {
    case strings.HasPrefix(ref, "s3://"):
        return r.downloadS3(ctx, ref, destDir)
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        return r.downloadHTTP(ctx, ref, destDir)
    case strings.HasPrefix(ref, "file://"):
        return strings.TrimPrefix(ref, "file://"), nil
    default:
        return ref, nil
    }
}

func (r *Resolver) downloadHTTP(ctx context.Context, url, destDir string) (string, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return "", err }
    resp, err := r.httpClient.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
    }
    f, err := os.CreateTemp(destDir, "ref-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, resp.Body); err != nil {
        os.Remove(f.Name())
        return "", err
    }
    return f.Name(), nil
}

func (r *Resolver) downloadS3(ctx context.Context, s3url, destDir string) (string, error) {
    path := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 { return "", fmt.Errorf("invalid s3 url: %s", s3url) }
    bucket := path[:slash]
    key := path[slash+1:]

    cfg, err := loadAWSConfig(ctx)
    if err != nil { return "", err }
    dl := manager.NewDownloader(s3.NewFromConfig(cfg))

    f, err := os.CreateTemp(destDir, "s3ref-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := dl.Download(ctx, f, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
        os.Remove(f.Name())
        return "", err
    }
    log.Info().Str("bucket", bucket).Str("key", key).Msg("downloaded s3 pdf reference")
    return f.Name(), nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
    // Explicit env credentials win; otherwise the default chain applies.
    if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
        return awscfg.LoadDefaultConfig(ctx,
            awscfg.WithCredentialsProvider(
                credentials.NewStaticCredentialsProvider(id, secret, os.Getenv("AWS_SESSION_TOKEN"))))
    }
    return awscfg.LoadDefaultConfig(ctx)
}
