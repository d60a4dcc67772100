package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevote-api/internal/domain"
)

// OtpChallengeRepo is the append-only OTP log.
// PK: subject_key ("<voter_id>#<purpose>"), SK: challenge_id (monotonic ULID)
type OtpChallengeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpChallengeRepo(client *dynamodb.Client, tableName string) *OtpChallengeRepo {
	return &OtpChallengeRepo{client: client, tableName: tableName}
}

func (r *OtpChallengeRepo) Append(ctx context.Context, c *domain.OtpChallenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(challenge_id)"),
	})
	return err
}

// Latest returns the newest challenge for subjectKey.
func (r *OtpChallengeRepo) Latest(ctx context.Context, subjectKey string) (*domain.OtpChallenge, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldSubjectKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: subjectKey},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.OtpChallenge
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkConsumed stamps consumed_at once. A second call fails with ErrConflict.
func (r *OtpChallengeRepo) MarkConsumed(ctx context.Context, subjectKey, challengeID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldConsumedAt: at})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldSubjectKey, subjectKey, fieldChallengeID, challengeID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_not_exists(" + fieldConsumedAt + ")"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp challenge already consumed: %w", domain.ErrConflict)
	}
	return err
}

// RecordFailure atomically adds one to the challenge's attempts counter and
// returns the new value.
func (r *OtpChallengeRepo) RecordFailure(ctx context.Context, subjectKey, challengeID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldSubjectKey, subjectKey, fieldChallengeID, challengeID),
		UpdateExpression:         aws.String("ADD #attempts :one"),
		ConditionExpression:      aws.String("attribute_exists(" + fieldChallengeID + ")"),
		ExpressionAttributeNames: map[string]string{"#attempts": fieldAttempts},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("otp challenge %s: %w", challengeID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Attempts, nil
}
