// Package integration exercises complete workflows end to end through the
// test harness: real step modules, real workers, real files on disk.
package integration

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/testutil"
)

func TestStepsRunInDeclarationOrder(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"order.hcl": `
workflow "order" {
  step "shell" "one" {
    arguments {
      run = ["echo one >> trace.txt"]
    }
  }

  step "shell" "two" {
    arguments {
      run = ["echo two >> trace.txt"]
    }
  }

  step "shell" "three" {
    arguments {
      run = ["echo three >> trace.txt"]
    }
  }
}
`})
	require.NoError(t, result.Err)
	testutil.AssertStepRan(t, result, "shell", "one")
	testutil.AssertStepRan(t, result, "shell", "three")

	trace, err := os.ReadFile(filepath.Join(result.Workspace, "trace.txt"))
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\nthree\n", string(trace),
		"steps without dependencies must run in declaration order")
}

func TestFailingStepSkipsDownstream(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"fail.hcl": `
workflow "fail" {
  step "shell" "install" {
    arguments {
      run = ["echo installing", "exit 1"]
    }
  }

  step "archive" "bundle" {
    arguments {
      source = "web_root"
      dest   = "build.tar.gz"
    }
  }

  step "artifact" "upload" {
    arguments {
      name   = "build.tar.gz"
      source = step.bundle.path
    }
  }
}
`})
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "step.shell.install")
	require.Contains(t, result.Err.Error(), "shell script failed")
	testutil.AssertStepSkipped(t, result, "archive", "bundle")
	testutil.AssertStepSkipped(t, result, "artifact", "upload")
	require.NoFileExists(t, filepath.Join(result.Workspace, "build.tar.gz"))
}

func TestBuildPipelineRetainsArtifact(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"build.hcl": `
workflow "build" {
  step "shell" "build" {
    arguments {
      run = [
        "mkdir -p web_root",
        "echo '<html></html>' > web_root/index.html",
      ]
    }
  }

  step "archive" "bundle" {
    arguments {
      source = "web_root"
      dest   = "web_root/build.tar.gz"
    }
  }

  step "artifact" "upload" {
    arguments {
      name   = "build.tar.gz"
      source = step.bundle.path
    }
  }
}
`})
	require.NoError(t, result.Err)
	testutil.AssertStepRan(t, result, "archive", "bundle")
	testutil.AssertStepRan(t, result, "artifact", "upload")

	retained := testutil.FindArtifact(t, result, "build.tar.gz")
	f, err := os.Open(retained)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	require.Contains(t, names, "index.html")
	require.NotContains(t, names, "build.tar.gz", "the tarball must not contain itself")
}

func TestBuildPipelineUploadsArtifact(t *testing.T) {
	var gotMethod, gotName string
	var gotMagic []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotName = r.Header.Get("X-Artifact-Name")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(body) >= 2 {
			gotMagic = body[:2]
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := testutil.RunWorkflowTest(t, map[string]string{
		"upload.hcl": fmt.Sprintf(`
workflow "upload" {
  step "shell" "build" {
    arguments {
      run = [
        "mkdir -p web_root",
        "echo hello > web_root/index.html",
      ]
    }
  }

  step "archive" "bundle" {
    arguments {
      source = "web_root"
      dest   = "web_root/build.tar.gz"
    }
  }

  step "artifact" "upload" {
    arguments {
      name       = "build.tar.gz"
      source     = step.bundle.path
      upload_url = %q
    }
  }
}
`, server.URL)})
	require.NoError(t, result.Err)

	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "build.tar.gz", gotName, "the uploaded artifact must carry its declared name")
	require.Equal(t, []byte{0x1f, 0x8b}, gotMagic, "the uploaded body must be the gzip tarball")
}

func TestBranchFilterSkipsWorkflow(t *testing.T) {
	// The harness pushes to refs/heads/main.
	result := testutil.RunWorkflowTest(t, map[string]string{
		"release.hcl": `
workflow "release-only" {
  on {
    push {
      branches = ["release/*"]
    }
  }

  step "shell" "never" {
    arguments {
      run = ["touch ran.txt"]
    }
  }
}
`})
	require.NoError(t, result.Err)
	require.Contains(t, result.LogOutput, "No workflow matched the push event.")
	require.NoFileExists(t, filepath.Join(result.Workspace, "ran.txt"))
}

func TestWorkflowEnvReachesShellSteps(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"env.hcl": `
workflow "env" {
  env = {
    APP_ENV = "production"
  }

  step "shell" "capture" {
    arguments {
      run = [
        "printenv APP_ENV > app_env.txt",
        "printenv CI > ci.txt",
      ]
    }
    env = {
      STEP_VAR = "x"
    }
  }
}
`})
	require.NoError(t, result.Err)

	appEnv, err := os.ReadFile(filepath.Join(result.Workspace, "app_env.txt"))
	require.NoError(t, err)
	require.Equal(t, "production\n", string(appEnv))

	ci, err := os.ReadFile(filepath.Join(result.Workspace, "ci.txt"))
	require.NoError(t, err)
	require.Equal(t, "true\n", string(ci), "shell steps always run with CI=true")
}

func TestEventAttributesFlowIntoArguments(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"event.hcl": `
workflow "event" {
  step "shell" "record" {
    arguments {
      run = ["echo ${event.branch} > branch.txt"]
    }
  }
}
`})
	require.NoError(t, result.Err)

	branch, err := os.ReadFile(filepath.Join(result.Workspace, "branch.txt"))
	require.NoError(t, err)
	require.Equal(t, "main\n", string(branch))
}

func TestImportedYAMLWorkflowRuns(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"ci.yml": `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: make output
        run: |
          mkdir -p web_root
          echo built > web_root/index.html
      - name: bundle
        run: tar -C . -czf build.tar.gz web_root
      - name: upload
        uses: actions/upload-artifact@v2
        with:
          name: build.tar.gz
          path: build.tar.gz
`})
	require.NoError(t, result.Err)
	testutil.AssertStepRan(t, result, "shell", "make-output")
	testutil.AssertStepRan(t, result, "artifact", "upload")
	testutil.FindArtifact(t, result, "build.tar.gz")
}

func TestProvisionedRuntimeReachesLaterSteps(t *testing.T) {
	// A minimal runtime distribution: a versioned directory with one tool
	// in bin/, the way Node.js tarballs are laid out.
	var dist bytes.Buffer
	gz := gzip.NewWriter(&dist)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "tool-v1/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "tool-v1/bin/", Typeflag: tar.TypeDir, Mode: 0o755}))
	script := "#!/bin/sh\necho from-runtime\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "tool-v1/bin/greet",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(script)),
	}))
	_, err := tw.Write([]byte(script))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(dist.Bytes())
	}))
	defer server.Close()

	result := testutil.RunWorkflowTest(t, map[string]string{
		"runtime.hcl": fmt.Sprintf(`
workflow "runtime" {
  step "setup_runtime" "tool" {
    arguments {
      url = %q
    }
  }

  step "shell" "use" {
    arguments {
      run = ["greet > tool.txt"]
    }
  }
}
`, server.URL)})
	require.NoError(t, result.Err)
	testutil.AssertStepRan(t, result, "setup_runtime", "tool")

	out, err := os.ReadFile(filepath.Join(result.Workspace, "tool.txt"))
	require.NoError(t, err)
	require.Equal(t, "from-runtime\n", string(out),
		"a provisioned runtime's bin directory must be on the PATH of later shell steps")
}

func TestParallelStepsWithDetachedRoots(t *testing.T) {
	result := testutil.RunWorkflowTest(t, map[string]string{
		"parallel.hcl": `
workflow "parallel" {
  step "shell" "a" {
    arguments {
      run = ["touch a.txt"]
    }
  }

  step "shell" "b" {
    depends_on = []
    arguments {
      run = ["touch b.txt"]
    }
  }

  step "shell" "join" {
    depends_on = ["a", "b"]
    arguments {
      run = ["cat /dev/null a.txt b.txt > joined.txt"]
    }
  }
}
`})
	require.NoError(t, result.Err)
	require.FileExists(t, filepath.Join(result.Workspace, "joined.txt"))
}
