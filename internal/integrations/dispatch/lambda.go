package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"slack-roaster/internal/domain"
)

// lambdaAPI is the minimal Lambda interface required by Lambda.
// *lambda.Client from aws-sdk-go-v2 satisfies this interface.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *awslambda.InvokeInput, optFns ...func(*awslambda.Options)) (*awslambda.InvokeOutput, error)
}

// Lambda hands jobs to a fresh asynchronous invocation of the worker
// function, usually the function currently running.
type Lambda struct {
	api          lambdaAPI
	functionName string
}

// NewLambda returns a dispatcher targeting functionName, or the running
// function when functionName is empty.
func NewLambda(api lambdaAPI, functionName string) (*Lambda, error) {
	if api == nil {
		return nil, errors.New("dispatch: lambda api must not be nil")
	}
	return &Lambda{api: api, functionName: strings.TrimSpace(functionName)}, nil
}

func (d *Lambda) target() string {
	if d.functionName != "" {
		return d.functionName
	}
	return lambdacontext.FunctionName
}

// Dispatch enqueues the job and returns once Lambda accepted the event.
func (d *Lambda) Dispatch(ctx context.Context, job domain.Job) error {
	name := d.target()
	if name == "" {
		return errors.New("dispatch: worker function name is not configured")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("dispatch: marshal job: %w", err)
	}
	out, err := d.api.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("dispatch: invoke %s: %w", name, err)
	}
	if out != nil && out.FunctionError != nil {
		return fmt.Errorf("dispatch: invoke %s: function error %s", name, aws.ToString(out.FunctionError))
	}
	return nil
}
