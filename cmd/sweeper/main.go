// Command sweeper is a scheduled Lambda that clears expired presence
// leases out of the DynamoDB table. Clients release their own leases on a
// clean exit; this catches the ones that died without saying goodbye.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"go.uber.org/zap"

	"sketchrelay/logger"
	"sketchrelay/store"
)

var leases *store.Dynamo

func Handler(ctx context.Context) error {
	swept, err := leases.SweepExpired(ctx)
	if err != nil {
		zap.L().Error("sweep failed", zap.Error(err))
		return err
	}
	zap.L().Info("sweep complete", zap.Int("expired", swept))
	return nil
}

func main() {
	lambda.Start(Handler)
}

func init() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		zap.L().Fatal("unable to create session", zap.Error(err))
	}
	leases = store.NewDynamo(dynamodb.New(sess), os.Getenv("TABLE_NAME"))
}
