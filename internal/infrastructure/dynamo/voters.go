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

// VoterRepo covers the eligible roster and the enrolled face store. Both tables
// are keyed by voter_id; enrollment writes to them in a single transaction.
type VoterRepo struct {
	client        *dynamodb.Client
	eligibleTable string
	enrolledTable string
}

func NewVoterRepo(client *dynamodb.Client, eligibleTable, enrolledTable string) *VoterRepo {
	return &VoterRepo{client: client, eligibleTable: eligibleTable, enrolledTable: enrolledTable}
}

func (r *VoterRepo) GetEligible(ctx context.Context, voterID string) (*domain.EligibleVoter, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.eligibleTable),
		Key:            strKey(fieldVoterID, voterID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("eligible voter not found: %w", domain.ErrNotFound)
	}
	var v domain.EligibleVoter
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertEligible inserts or refreshes a roster row. is_registered is only
// initialised on insert, so re-importing never un-registers a voter.
// created reports whether the row did not exist before.
func (r *VoterRepo) UpsertEligible(ctx context.Context, v domain.EligibleVoter) (created bool, err error) {
	expr := "SET #name = :name, #email = :email, #reg = if_not_exists(#reg, :false)"
	names := map[string]string{
		"#name":  "name",
		"#email": "email",
		"#reg":   fieldIsRegistered,
		"#phone": "phone",
	}
	values := map[string]types.AttributeValue{
		":name":  &types.AttributeValueMemberS{Value: v.Name},
		":email": &types.AttributeValueMemberS{Value: v.Email},
		":false": &types.AttributeValueMemberBOOL{Value: false},
	}
	if v.Phone != nil {
		expr += ", #phone = :phone"
		values[":phone"] = &types.AttributeValueMemberS{Value: *v.Phone}
	} else {
		expr += " REMOVE #phone"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.eligibleTable),
		Key:                       strKey(fieldVoterID, v.VoterID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedOld,
	})
	if err != nil {
		return false, fmt.Errorf("upsert eligible voter %s: %w", v.VoterID, err)
	}
	return len(out.Attributes) == 0, nil
}

func (r *VoterRepo) CountEligible(ctx context.Context) (int, error) {
	return countItems(ctx, r.client, &dynamodb.ScanInput{TableName: aws.String(r.eligibleTable)})
}

func (r *VoterRepo) CountRegistered(ctx context.Context) (int, error) {
	return countItems(ctx, r.client, &dynamodb.ScanInput{
		TableName:                aws.String(r.eligibleTable),
		FilterExpression:         aws.String("#reg = :true"),
		ExpressionAttributeNames: map[string]string{"#reg": fieldIsRegistered},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
}

func (r *VoterRepo) GetEnrolled(ctx context.Context, voterID string) (*domain.EnrolledVoter, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.enrolledTable),
		Key:       strKey(fieldVoterID, voterID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("enrolled voter not found: %w", domain.ErrNotFound)
	}
	var v domain.EnrolledVoter
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Enroll stores the embedding and flips is_registered in one transaction.
// Either write failing its condition yields ErrAlreadyRegistered.
func (r *VoterRepo) Enroll(ctx context.Context, voterID string, embedding []float64, at time.Time) error {
	item, err := attributevalue.MarshalMap(domain.EnrolledVoter{
		VoterID:       voterID,
		FaceEmbedding: embedding,
		RegisteredAt:  at,
	})
	if err != nil {
		return fmt.Errorf("marshal enrolled voter: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.enrolledTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(voter_id)"),
			}},
			{Update: &types.Update{
				TableName:                aws.String(r.eligibleTable),
				Key:                      strKey(fieldVoterID, voterID),
				UpdateExpression:         aws.String("SET #reg = :true"),
				ConditionExpression:      aws.String("attribute_exists(voter_id) AND #reg = :false"),
				ExpressionAttributeNames: map[string]string{"#reg": fieldIsRegistered},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":true":  &types.AttributeValueMemberBOOL{Value: true},
					":false": &types.AttributeValueMemberBOOL{Value: false},
				},
			}},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("enroll %s: %w", voterID, domain.ErrAlreadyRegistered)
		}
		return fmt.Errorf("enroll %s: %w", voterID, err)
	}
	return nil
}

// EachEnrolled visits every enrolled voter in table order. fn returning an
// error stops the scan.
func (r *VoterRepo) EachEnrolled(ctx context.Context, fn func(domain.EnrolledVoter) error) error {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.enrolledTable),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan enrolled voters: %w", err)
		}
		var page []domain.EnrolledVoter
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return fmt.Errorf("unmarshal enrolled voters: %w", err)
		}
		for _, v := range page {
			if err := fn(v); err != nil {
				return err
			}
		}
	}
	return nil
}
