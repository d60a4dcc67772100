package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevote-api/internal/domain"
)

// BallotRepo stores cast ballots. PK: election_id, SK: voter_id.
type BallotRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewBallotRepo(client *dynamodb.Client, tableName string) *BallotRepo {
	return &BallotRepo{client: client, tableName: tableName}
}

// Insert writes b unless the voter already has a ballot in the election,
// in which case it returns ErrAlreadyVoted.
func (r *BallotRepo) Insert(ctx context.Context, b *domain.Ballot) error {
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal ballot: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(voter_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("ballot exists: %w", domain.ErrAlreadyVoted)
	}
	return err
}

func (r *BallotRepo) Exists(ctx context.Context, electionID, voterID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  compositeKey(fieldElectionID, electionID, fieldVoterID, voterID),
		ProjectionExpression: aws.String("#v"),
		ExpressionAttributeNames: map[string]string{
			"#v": fieldVoterID,
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// Tally counts ballots per candidate_id for one election.
func (r *BallotRepo) Tally(ctx context.Context, electionID string) (map[string]int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#eid = :eid"),
		ProjectionExpression:   aws.String("#cid"),
		ExpressionAttributeNames: map[string]string{
			"#eid": fieldElectionID,
			"#cid": "candidate_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: electionID},
		},
	})
	counts := make(map[string]int)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if cid, ok := item["candidate_id"].(*types.AttributeValueMemberS); ok {
				counts[cid.Value]++
			}
		}
	}
	return counts, nil
}

func (r *BallotRepo) Count(ctx context.Context) (int, error) {
	return countItems(ctx, r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
}
