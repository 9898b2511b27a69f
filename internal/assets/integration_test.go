//go:build integration

package assets_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/AllenNeuralDynamics/cosync/internal/assets"
)

func TestIntegrationSyncFromMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minioContainer, bucketURL := startMinioContainer(t, ctx, "test-assets")
	defer func() {
		if err := minioContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	// Seed objects
	objects := map[string]string{
		"session-1/behavior.json":  `{"trials": 10}`,
		"session-1/sub/frames.csv": "t,x\n1,2\n",
		"Behavior-Videos/cam0.avi": "videodata",
	}
	for key, content := range objects {
		if err := bucket.WriteAll(ctx, key, []byte(content), nil); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	dest := t.TempDir()
	summary, err := assets.Sync(ctx, bucket, dest, assets.Options{
		Workers: 4,
		Exclude: []string{"Behavior-Videos/*"},
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if summary.Synced != 2 || summary.Excluded != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	data, err := os.ReadFile(filepath.Join(dest, "session-1", "behavior.json"))
	if err != nil {
		t.Fatalf("read synced file: %v", err)
	}
	if string(data) != objects["session-1/behavior.json"] {
		t.Errorf("content mismatch: %q", data)
	}

	// Second pass is a no-op
	summary, err = assets.Sync(ctx, bucket, dest, assets.Options{
		Workers: 4,
		Exclude: []string{"Behavior-Videos/*"},
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Sync (second pass): %v", err)
	}
	if summary.Synced != 0 || summary.Present != 2 {
		t.Fatalf("unexpected second-pass summary: %+v", summary)
	}
}

// startMinioContainer starts a Minio container with a pre-created bucket.
// Returns the container and the gocloud bucket URL.
func startMinioContainer(t *testing.T, ctx context.Context, bucketName string) (testcontainers.Container, string) {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	networkName := fmt.Sprintf("assets-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	minioReq := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Networks:     []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {"minio"},
		},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: minioReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucketWithMC(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	endpoint := fmt.Sprintf("%s:%s", host, port.Port())
	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return minioContainer, bucketURL
}

// createBucketWithMC creates a bucket using a separate minio/mc container.
func createBucketWithMC(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mcReq := testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{networkName},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{
			fmt.Sprintf(
				"/usr/bin/mc config host add myminio http://minio:9000 %s %s && "+
					"/usr/bin/mc mb myminio/%s && "+
					"/usr/bin/mc policy set download myminio/%s; "+
					"exit 0",
				accessKey, secretKey, bucketName, bucketName,
			),
		},
		WaitingFor: wait.ForExit(),
	}

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mcReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}
