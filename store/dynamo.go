package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sketchrelay/game"
)

// Dynamo is a SessionStore on a single DynamoDB table. Conditional updates
// carry the race handling; Watch is a poll loop since Dynamo has no push
// channel to clients; presence is a lease item per player, refreshed on a
// heartbeat and reaped by SweepExpired (see cmd/sweeper).
type Dynamo struct {
	d         *dynamodb.DynamoDB
	tableName string

	PollInterval time.Duration
	LeaseTTL     time.Duration
}

// SessionItem is the stored form of a session.
type SessionItem struct {
	PK       string
	SK       string
	Type     string
	GameCode string
	Round    int
	Word     string
	Rev      int64
	Players  map[string]int
}

// StrokesItem holds one player's current stroke document.
type StrokesItem struct {
	PK   string
	SK   string
	Type string
	Doc  []byte
}

// LeaseItem marks a player as present until Expires.
type LeaseItem struct {
	PK       string
	SK       string
	Type     string
	GameCode string
	Player   string
	Owner    string
	Expires  int64
}

func NewDynamo(d *dynamodb.DynamoDB, tableName string) *Dynamo {
	return &Dynamo{
		d:            d,
		tableName:    tableName,
		PollInterval: time.Second,
		LeaseTTL:     15 * time.Second,
	}
}

func sessionPK(code string) string { return fmt.Sprintf("SESSION#%s", code) }

func key(pk, sk string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(pk)},
		"SK": {S: aws.String(sk)},
	}
}

func conditionFailed(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
	}
	return false
}

func (s *Dynamo) Create(ctx context.Context, sess *game.Session) error {
	item := SessionItem{
		PK:       sessionPK(sess.Code),
		SK:       sessionPK(sess.Code),
		Type:     "SessionItem",
		GameCode: sess.Code,
		Round:    sess.Round,
		Word:     sess.Word,
		Rev:      sess.Rev,
		Players:  sess.Players,
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return err
	}

	_, err = s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:                av,
		TableName:           aws.String(s.tableName),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if conditionFailed(err) {
		return ErrExists
	}
	return err
}

func (s *Dynamo) Load(ctx context.Context, code string) (*game.Session, error) {
	result, err := s.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key(sessionPK(code), sessionPK(code)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	item := SessionItem{}
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}
	sess := &game.Session{
		Code:    item.GameCode,
		Round:   item.Round,
		Word:    item.Word,
		Rev:     item.Rev,
		Players: item.Players,
	}
	if sess.Players == nil {
		sess.Players = map[string]int{}
	}
	return sess, nil
}

func (s *Dynamo) AddPlayer(ctx context.Context, code, name string, index int, rev int64) error {
	_, err := s.d.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(sessionPK(code), sessionPK(code)),
		ExpressionAttributeNames: map[string]*string{
			"#players": aws.String("Players"),
			"#name":    aws.String(name),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":idx": {N: aws.String(strconv.Itoa(index))},
			":rev": {N: aws.String(strconv.FormatInt(rev, 10))},
			":one": {N: aws.String("1")},
		},
		ConditionExpression: aws.String("attribute_exists(PK) AND Rev = :rev"),
		UpdateExpression:    aws.String("SET #players.#name = :idx, Rev = Rev + :one"),
	})
	if conditionFailed(err) {
		// Either the revision moved or the session is gone; tell them apart.
		if _, loadErr := s.Load(ctx, code); loadErr != nil {
			return loadErr
		}
		return ErrConflict
	}
	return err
}

func (s *Dynamo) RemovePlayer(ctx context.Context, code, name string) error {
	_, err := s.d.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(sessionPK(code), sessionPK(code)),
		ExpressionAttributeNames: map[string]*string{
			"#players": aws.String("Players"),
			"#name":    aws.String(name),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":one": {N: aws.String("1")},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("REMOVE #players.#name SET Rev = Rev + :one"),
	})
	if err != nil && !conditionFailed(err) {
		return err
	}

	for _, sk := range []string{fmt.Sprintf("STROKES#%s", name), fmt.Sprintf("LEASE#%s", name)} {
		_, err := s.d.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       key(sessionPK(code), sk),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Dynamo) AdvanceRound(ctx context.Context, code string, from int, word string) error {
	_, err := s.d.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(sessionPK(code), sessionPK(code)),
		ExpressionAttributeNames: map[string]*string{
			"#round": aws.String("Round"),
			"#word":  aws.String("Word"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":from": {N: aws.String(strconv.Itoa(from))},
			":next": {N: aws.String(strconv.Itoa(from + 1))},
			":word": {S: aws.String(word)},
		},
		ConditionExpression: aws.String("attribute_exists(PK) AND #round = :from"),
		UpdateExpression:    aws.String("SET #round = :next, #word = :word"),
	})
	if conditionFailed(err) {
		if _, loadErr := s.Load(ctx, code); loadErr != nil {
			return loadErr
		}
		return ErrConflict
	}
	return err
}

func (s *Dynamo) PutStrokes(ctx context.Context, code, name string, doc []byte) error {
	item := StrokesItem{
		PK:   sessionPK(code),
		SK:   fmt.Sprintf("STROKES#%s", name),
		Type: "StrokesItem",
		Doc:  doc,
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return err
	}
	_, err = s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(s.tableName),
	})
	return err
}

func (s *Dynamo) GetStrokes(ctx context.Context, code, name string) ([]byte, error) {
	result, err := s.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(sessionPK(code), fmt.Sprintf("STROKES#%s", name)),
	})
	if err != nil {
		return nil, err
	}
	if len(result.Item) == 0 {
		return nil, nil
	}
	item := StrokesItem{}
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}
	return item.Doc, nil
}

// Watch polls the session item and emits a snapshot whenever its round,
// word, or roster revision moved. Polling is the push-vs-poll tradeoff the
// sync design already allows for on the stroke path.
func (s *Dynamo) Watch(ctx context.Context, code string) (<-chan game.Session, error) {
	first, err := s.Load(ctx, code)
	if err != nil {
		return nil, err
	}

	ch := make(chan game.Session, 16)
	ch <- *first

	go func() {
		defer close(ch)
		last := *first

		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			sess, err := s.Load(ctx, code)
			if err != nil {
				if err == ErrNotFound {
					return
				}
				zap.L().Warn("session poll failed", zap.String("code", code), zap.Error(err))
				continue
			}
			if sess.Rev == last.Rev && sess.Round == last.Round && sess.Word == last.Word {
				continue
			}
			last = *sess
			select {
			case ch <- *sess:
			default:
			}
		}
	}()

	return ch, nil
}

func (s *Dynamo) Announce(ctx context.Context, code, name string) (func(), error) {
	token := uuid.NewString()
	if err := s.putLease(ctx, code, name, token); err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			bg := context.Background()
			_, err := s.d.DeleteItemWithContext(bg, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key:       key(sessionPK(code), fmt.Sprintf("LEASE#%s", name)),
				ExpressionAttributeNames: map[string]*string{
					"#owner": aws.String("Owner"),
				},
				ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
					":owner": {S: aws.String(token)},
				},
				ConditionExpression: aws.String("#owner = :owner"),
			})
			if err != nil && !conditionFailed(err) {
				zap.L().Warn("lease delete failed",
					zap.String("code", code), zap.String("player", name), zap.Error(err))
			}
			if err := s.RemovePlayer(bg, code, name); err != nil {
				zap.L().Warn("leave cleanup failed",
					zap.String("code", code), zap.String("player", name), zap.Error(err))
			}
		})
	}

	go func() {
		ticker := time.NewTicker(s.LeaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				release()
				return
			case <-ticker.C:
				if err := s.putLease(ctx, code, name, token); err != nil {
					zap.L().Warn("lease refresh failed",
						zap.String("code", code), zap.String("player", name), zap.Error(err))
				}
			}
		}
	}()

	return release, nil
}

func (s *Dynamo) putLease(ctx context.Context, code, name, token string) error {
	item := LeaseItem{
		PK:       sessionPK(code),
		SK:       fmt.Sprintf("LEASE#%s", name),
		Type:     "LeaseItem",
		GameCode: code,
		Player:   name,
		Owner:    token,
		Expires:  time.Now().Add(s.LeaseTTL).Unix(),
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return err
	}
	_, err = s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(s.tableName),
	})
	return err
}

// SweepExpired scans for leases past their expiry and removes the players
// they were protecting. Runs from the scheduled sweeper job; clients never
// block on it.
func (s *Dynamo) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().Unix()
	swept := 0

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		ExpressionAttributeNames: map[string]*string{
			"#type": aws.String("Type"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":lease": {S: aws.String("LeaseItem")},
			":now":   {N: aws.String(strconv.FormatInt(now, 10))},
		},
		FilterExpression: aws.String("#type = :lease AND Expires < :now"),
	}

	err := s.d.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, av := range page.Items {
			item := LeaseItem{}
			if err := dynamodbattribute.UnmarshalMap(av, &item); err != nil {
				zap.L().Warn("unreadable lease item skipped", zap.Error(err))
				continue
			}
			if err := s.RemovePlayer(ctx, item.GameCode, item.Player); err != nil {
				zap.L().Warn("expired lease removal failed",
					zap.String("code", item.GameCode), zap.String("player", item.Player), zap.Error(err))
				continue
			}
			swept++
		}
		return true
	})
	return swept, err
}
