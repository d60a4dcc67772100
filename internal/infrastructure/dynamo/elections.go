package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevote-api/internal/domain"
)

// maxTransactItems is the DynamoDB TransactWriteItems limit.
const maxTransactItems = 100

// ElectionRepo stores elections and their candidates.
type ElectionRepo struct {
	client          *dynamodb.Client
	electionsTable  string
	candidatesTable string
}

func NewElectionRepo(client *dynamodb.Client, electionsTable, candidatesTable string) *ElectionRepo {
	return &ElectionRepo{client: client, electionsTable: electionsTable, candidatesTable: candidatesTable}
}

// Create writes the election and all of its candidates atomically.
func (r *ElectionRepo) Create(ctx context.Context, e *domain.Election, candidates []domain.Candidate) error {
	if len(candidates)+1 > maxTransactItems {
		return fmt.Errorf("too many candidates (%d): %w", len(candidates), domain.ErrBadRequest)
	}
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal election: %w", err)
	}
	tx := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(r.electionsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(election_id)"),
	}}}
	for i := range candidates {
		ci, err := attributevalue.MarshalMap(candidates[i])
		if err != nil {
			return fmt.Errorf("marshal candidate: %w", err)
		}
		tx = append(tx, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(r.candidatesTable),
			Item:      ci,
		}})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx})
	if isConditionFailed(err) {
		return fmt.Errorf("election %s exists: %w", e.ElectionID, domain.ErrConflict)
	}
	return err
}

func (r *ElectionRepo) Get(ctx context.Context, electionID string) (*domain.Election, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.electionsTable),
		Key:       strKey(fieldElectionID, electionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("election not found: %w", domain.ErrNotFound)
	}
	var e domain.Election
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every election, newest first.
func (r *ElectionRepo) List(ctx context.Context) ([]domain.Election, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.electionsTable),
	})
	var all []domain.Election
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Election
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ElectionID > all[j].ElectionID })
	return all, nil
}

func (r *ElectionRepo) SetActive(ctx context.Context, electionID string, active bool) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldIsActive: active})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.electionsTable),
		Key:                       strKey(fieldElectionID, electionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(election_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("election not found: %w", domain.ErrNotFound)
	}
	return err
}

// Candidates lists the candidates of an election ordered by name.
func (r *ElectionRepo) Candidates(ctx context.Context, electionID string) ([]domain.Candidate, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.candidatesTable),
		IndexName:                aws.String("election_id-index"),
		KeyConditionExpression:   aws.String("#eid = :eid"),
		ExpressionAttributeNames: map[string]string{"#eid": fieldElectionID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: electionID},
		},
	})
	var all []domain.Candidate
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Candidate
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *ElectionRepo) GetCandidate(ctx context.Context, candidateID string) (*domain.Candidate, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.candidatesTable),
		Key:       strKey("candidate_id", candidateID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("candidate not found: %w", domain.ErrNotFound)
	}
	var c domain.Candidate
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
