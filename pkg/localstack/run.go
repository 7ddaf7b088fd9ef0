package localstack

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/goldsam/jest-localstack/internal/seed"
)

// Runner runs the tests of a package. *testing.M satisfies it.
type Runner interface {
	Run() int
}

// Run wraps a test binary: it provisions LocalStack, runs the tests and tears
// the container down again. It returns the exit code for os.Exit. No test runs
// when setup fails.
func Run(m Runner, opts ...Option) int {
	ctx := context.Background()
	o := newOptions(opts)

	// The AWS SDK refuses to sign requests without credentials.
	setenvDefault("AWS_ACCESS_KEY_ID", seed.AccessKeyID)
	setenvDefault("AWS_SECRET_ACCESS_KEY", seed.SecretAccessKey)

	env, err := Setup(ctx, opts...)
	if err != nil {
		logrus.WithError(err).Error("LocalStack setup failed")
		return 1
	}

	defer env.Teardown(ctx)

	if o.onReady != nil {
		o.onReady(env)
	}
	return m.Run()
}

func setenvDefault(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		os.Setenv(key, value)
	}
}
