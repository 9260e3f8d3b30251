package storage

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DynamoDBStore is an implementation of Store backed by a DynamoDB table whose
// partition key is the binary attribute "k". Values live in the binary
// attribute "va".
type DynamoDBStore struct {
	table string
	ddb   dynamodbiface.DynamoDBAPI

	// Do throttling on our side based on configured RCUs/WCUs so the
	// client doesn't have to retry.
	getLimiter *rate.Limiter
	putLimiter *rate.Limiter
}

func NewDynamoDBStore(profile, region, table string) (*DynamoDBStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewSharedCredentials("", profile),
	})
	if err != nil {
		return nil, err
	}
	return NewDynamoDBStoreWithClient(dynamodb.New(sess), table)
}

// NewDynamoDBStoreWithClient is like NewDynamoDBStore, for callers that
// already have a DynamoDB client (or a fake one, in tests).
func NewDynamoDBStoreWithClient(ddb dynamodbiface.DynamoDBAPI, table string) (*DynamoDBStore, error) {
	s := &DynamoDBStore{
		table: table,
		ddb:   ddb,
	}
	if err := s.configureLimiters(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DynamoDBStore) configureLimiters() error {
	result, err := s.ddb.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return fmt.Errorf("could not describe table %q: %w", s.table, err)
	}
	// Assume our items, that we get/put individually, are <= 1 kB,
	// so that RCUs/WCUs translate to get/put requests per second.
	var rcus, wcus int64
	if pt := result.Table.ProvisionedThroughput; pt != nil {
		rcus = aws.Int64Value(pt.ReadCapacityUnits)
		wcus = aws.Int64Value(pt.WriteCapacityUnits)
	}
	s.getLimiter = newCapacityLimiter(rcus)
	s.putLimiter = newCapacityLimiter(wcus)
	log.WithFields(log.Fields{
		"table": s.table,
		"rcus":  rcus,
		"wcus":  wcus,
	}).Debug("Configured limiters")
	return nil
}

// On-demand tables report zero capacity units; don't throttle those.
func newCapacityLimiter(units int64) *rate.Limiter {
	if units <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(1_000_000/units)*time.Microsecond), 1)
}

// Put relies on PutItem returning the replaced item, which DynamoDB computes
// atomically with the write.
func (s *DynamoDBStore) Put(key, value []byte) (previous []byte, replaced bool, err error) {
	var input dynamodb.PutItemInput
	input.TableName = &s.table
	input.Item = map[string]*dynamodb.AttributeValue{
		"k":  ddbBinary(key),
		"va": ddbBinary(value),
	}
	input.ReturnValues = aws.String(dynamodb.ReturnValueAllOld)
	time.Sleep(s.putLimiter.Reserve().Delay())
	output, err := s.ddb.PutItem(&input)
	if err != nil {
		return nil, false, fmt.Errorf("could not put %.40q: %w", key, err)
	}
	if len(output.Attributes) == 0 {
		return nil, false, nil
	}
	return ddbValue(output.Attributes), true, nil
}

func (s *DynamoDBStore) Get(key []byte) (value []byte, err error) {
	var input dynamodb.GetItemInput
	input.TableName = &s.table
	input.Key = map[string]*dynamodb.AttributeValue{
		"k": ddbBinary(key),
	}
	input.ConsistentRead = aws.Bool(true)
	time.Sleep(s.getLimiter.Reserve().Delay())
	output, err := s.ddb.GetItem(&input)
	if err != nil {
		return nil, fmt.Errorf("could not get %.40q: %w", key, err)
	}
	if output.Item == nil {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	return ddbValue(output.Item), nil
}

// Size scans the whole table, so it costs read capacity proportional to the
// table size.
func (s *DynamoDBStore) Size() (int, error) {
	var input dynamodb.ScanInput
	input.TableName = &s.table
	input.Select = aws.String(dynamodb.SelectCount)
	var n int64
	err := s.ddb.ScanPages(&input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		n += aws.Int64Value(page.Count)
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("could not count items in %q: %w", s.table, err)
	}
	return int(n), nil
}

func ddbBinary(b []byte) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{
		B: dup(b),
	}
}

func ddbValue(item map[string]*dynamodb.AttributeValue) []byte {
	if av, ok := item["va"]; ok && av != nil {
		return dup(av.B)
	}
	return []byte{}
}
