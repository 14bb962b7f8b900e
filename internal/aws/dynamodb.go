package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/ppiankov/awsinventory/internal/record"
)

// DynamoDBAPI is the minimal interface for DynamoDB table operations.
type DynamoDBAPI interface {
	ListTables(ctx context.Context, input *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTagsOfResource(ctx context.Context, input *dynamodb.ListTagsOfResourceInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTagsOfResourceOutput, error)
}

// DynamoDBEnumerator lists DynamoDB tables. Size and item count are the
// values DynamoDB refreshes roughly every six hours.
type DynamoDBEnumerator struct {
	newClient func(awssdk.Config) DynamoDBAPI
}

// Kind returns the resource kind.
func (e *DynamoDBEnumerator) Kind() string { return KindDynamoDB }

// Global reports false: tables are regional.
func (e *DynamoDBEnumerator) Global() bool { return false }

// Enumerate lists every table in the region that is not being deleted.
func (e *DynamoDBEnumerator) Enumerate(ctx context.Context, cfg awssdk.Config, region string) ([]record.Record, error) {
	client := e.newClient(Regional(cfg, region))

	var names []string
	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list DynamoDB tables: %w", err)
		}
		names = append(names, page.TableNames...)
	}

	records := make([]record.Record, 0, len(names))
	for _, name := range names {
		r := newItem(name, name)

		out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: awssdk.String(name)})
		if err != nil || out.Table == nil {
			// The table exists; its details are unknown
			log.Warn().Err(err).Str("region", region).Str("table", name).Msg("Failed to describe DynamoDB table")
			records = append(records, r)
			continue
		}

		table := out.Table
		if table.TableStatus == ddbtypes.TableStatusDeleting {
			continue
		}

		r.Set("status", record.String(string(table.TableStatus)))
		billing := ""
		if table.BillingModeSummary != nil {
			billing = string(table.BillingModeSummary.BillingMode)
		}
		r.Set("billing_mode", record.StringOrNull(billing))
		r.Set("item_count", record.Int(derefInt64(table.ItemCount)))
		record.SetSizes(&r, record.FromBytes(float64(derefInt64(table.TableSizeBytes))))

		tags, err := tableTags(ctx, client, table.TableArn)
		if err != nil {
			log.Warn().Err(err).Str("region", region).Str("table", name).Msg("Failed to list DynamoDB table tags")
		}
		setTags(&r, KindDynamoDB, tags)

		records = append(records, r)
	}

	return records, nil
}

func tableTags(ctx context.Context, client DynamoDBAPI, arn *string) (map[string]string, error) {
	if arn == nil {
		return nil, nil
	}

	tags := make(map[string]string)
	var token *string
	for {
		out, err := client.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{
			ResourceArn: arn,
			NextToken:   token,
		})
		if err != nil {
			return nil, err
		}
		for _, t := range out.Tags {
			if t.Key != nil {
				tags[*t.Key] = deref(t.Value)
			}
		}
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}
	return tags, nil
}
