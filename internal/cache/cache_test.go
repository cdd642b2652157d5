package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/go-redis/redismock/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type OracleCacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *OracleCache
	key   valuation.MarketCacheKey
}

func (s *OracleCacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	log := logrus.New()
	log.SetOutput(io.Discard)
	s.cache = NewOracleCache(db, time.Hour, log)
	s.key = valuation.NewMarketCacheKey("Honda", "City", "Diesel", "", 2018, "Delhi")
}

func (s *OracleCacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func TestOracleCacheTestSuite(t *testing.T) {
	suite.Run(t, new(OracleCacheTestSuite))
}

func (s *OracleCacheTestSuite) TestGet_Hit() {
	want := gemini.OracleEstimate{Price: 320000, Confidence: 0.7, ListingCount: 12,
		EstimatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	raw, _ := json.Marshal(want)
	s.mock.ExpectGet("oracle:HONDA|CITY|DIESEL||2018|DELHI").SetVal(string(raw))

	got, err := s.cache.Get(context.Background(), s.key)
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *OracleCacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("oracle:HONDA|CITY|DIESEL||2018|DELHI").RedisNil()

	_, err := s.cache.Get(context.Background(), s.key)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *OracleCacheTestSuite) TestGet_CorruptEntryIsDropped() {
	s.mock.ExpectGet("oracle:HONDA|CITY|DIESEL||2018|DELHI").SetVal("{not json")
	s.mock.ExpectDel("oracle:HONDA|CITY|DIESEL||2018|DELHI").SetVal(1)

	_, err := s.cache.Get(context.Background(), s.key)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *OracleCacheTestSuite) TestGet_Error() {
	s.mock.ExpectGet("oracle:HONDA|CITY|DIESEL||2018|DELHI").SetErr(errors.New("connection refused"))

	_, err := s.cache.Get(context.Background(), s.key)
	s.Error(err)
	s.NotErrorIs(err, ErrCacheMiss)
}

func (s *OracleCacheTestSuite) TestSet() {
	est := gemini.OracleEstimate{Price: 320000, Confidence: 0.7, EstimatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	raw, _ := json.Marshal(est)
	s.mock.ExpectSet("oracle:HONDA|CITY|DIESEL||2018|DELHI", string(raw), time.Hour).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), s.key, est))
}
