// Package batch 把同一类型的记录集合写成一条多行 INSERT 语句
//
// 值以字面量形式内嵌在语句中，不使用占位符；写入模式（普通、忽略、替换、upsert）
// 由 UpdateStrategy 与方言 Platform 共同决定。开启关联写入时，拥有方关联先写、
// 反向关联后写，自增主键在写入后回填。
package batch

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"batchinsert/data/batch/keygen"
	core "batchinsert/data/db"
	"batchinsert/data/db/dialect"
	"batchinsert/data/orm"
	"batchinsert/errors"
	"batchinsert/logging"
)

// Service 批量写入入口，非并发安全
type Service struct {
	db        core.IDatabase
	platform  dialect.Platform
	provider  orm.IMetadataProvider
	validator IValidator
	encoder   *Encoder
	builder   *Builder
	keys      *keygen.Selector
	allocator keygen.IAllocator
	oracle    orm.IIdentityOracle
	config    Config
	logger    logging.Logger
}

// Option 服务选项
type Option func(*Service)

// WithValidator 替换默认的集合校验
func WithValidator(v IValidator) Option {
	return func(s *Service) { s.validator = v }
}

// WithValueConverter 为编码器设置值转换器
func WithValueConverter(c IValueConverter) Option {
	return func(s *Service) { s.encoder = NewEncoder(c) }
}

// WithAllocator 启用整数客户端主键（Snowflake、Redis 等）
func WithAllocator(a keygen.IAllocator) Option {
	return func(s *Service) { s.allocator = a }
}

// WithOracle 替换判断实例是否已持久化的方式
func WithOracle(o orm.IIdentityOracle) Option {
	return func(s *Service) { s.oracle = o }
}

// NewService 创建服务；Platform 在此一次性确定
func NewService(database core.IDatabase, provider orm.IMetadataProvider, config Config, opts ...Option) (*Service, error) {
	if database == nil {
		return nil, errors.NewConfigurationError("batch: database is nil")
	}
	if provider == nil {
		return nil, errors.NewConfigurationError("batch: metadata provider is nil")
	}

	cfg, err := config.normalize()
	if err != nil {
		return nil, err
	}

	var platform dialect.Platform
	if cfg.Dialect != "" {
		platform, err = dialect.NewPlatform(cfg.Dialect)
	} else {
		platform, err = dialect.PlatformFor(database)
	}
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:        database,
		platform:  platform,
		provider:  provider,
		validator: NewCollectionValidator(),
		encoder:   NewEncoder(nil),
		config:    cfg,
		logger:    cfg.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.ComponentLogger("batch")
	}
	if s.oracle == nil {
		s.oracle = orm.NewDefaultOracle(provider)
	}
	s.builder = NewBuilder(platform, provider, s.encoder)
	s.keys = keygen.NewSelector(provider, s.allocator)

	s.logger.Debug(context.Background(), "batch service ready",
		logging.String("platform", string(platform.Name())),
		logging.Int("max_depth", cfg.MaxDepth),
		logging.String("default_mode", string(cfg.DefaultMode)))
	return s, nil
}

// WithDatabase 返回使用另一个连接（通常是事务）的副本
func (s *Service) WithDatabase(database core.IDatabase) *Service {
	clone := *s
	clone.db = database
	clone.builder = NewBuilder(s.platform, s.provider, s.encoder)
	return &clone
}

// Platform 当前方言
func (s *Service) Platform() dialect.Platform { return s.platform }

// BatchInsert 写入集合并返回（已回填主键的）同一集合
func (s *Service) BatchInsert(ctx context.Context, req *Request) ([]any, error) {
	if req == nil || len(req.Records) == 0 {
		return nil, nil
	}
	if _, err := s.run(ctx, req, false); err != nil {
		return nil, err
	}
	return req.Records, nil
}

// BatchInsertWithResult 写入集合并返回顶层语句 RETURNING 的行
func (s *Service) BatchInsertWithResult(ctx context.Context, req *Request) ([]map[string]any, error) {
	if req == nil || len(req.Records) == 0 {
		return []map[string]any{}, nil
	}
	return s.run(ctx, req, true)
}

const (
	stageBefore = iota
	stageInsert
	stageDone
)

// frame 工作栈中的一次集合写入
type frame struct {
	records    []any
	meta       *orm.ModelMeta
	fields     QueryFields
	relations  bool
	withResult bool
	depth      int
	stage      int
	related    *RelatedEntities
}

// run 以显式工作栈代替递归：
// stageBefore 校验并压入拥有方关联，stageInsert 写入本集合并压入反向关联，stageDone 出栈。
func (s *Service) run(ctx context.Context, req *Request, withResult bool) ([]map[string]any, error) {
	mode := req.UpdateMode
	if mode == "" {
		mode = s.config.DefaultMode
	}
	strategy := StrategyFor(mode)

	if err := s.validator.Validate(req.Records); err != nil {
		return nil, err
	}
	meta, err := s.provider.MetadataFor(req.Records[0])
	if err != nil {
		return nil, err
	}

	known := orm.NewIdentityMap(s.oracle)
	known.Mark(req.Records...)
	analyzer := NewRelationAnalyzer(s.provider, known)

	var result []map[string]any
	stack := []*frame{{
		records:    req.Records,
		meta:       meta,
		fields:     req.fields(),
		relations:  req.WithRelations,
		withResult: withResult,
	}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeTimeout, "batch insert cancelled")
		}

		f := stack[len(stack)-1]
		switch f.stage {
		case stageBefore:
			if f.depth > s.config.MaxDepth {
				return nil, errors.NewErrorWithCause(errors.ErrCodeConfiguration,
					fmt.Sprintf("relations of %s nested deeper than %d", f.meta.TypeName, s.config.MaxDepth),
					ErrRelationDepth)
			}
			if f.depth > 0 {
				if err := s.validator.Validate(f.records); err != nil {
					return nil, err
				}
			}
			f.stage = stageInsert
			if !f.relations {
				continue
			}
			related, err := analyzer.Analyze(f.records, f.meta)
			if err != nil {
				return nil, err
			}
			f.related = related
			children, err := s.childFrames(related.Before, f.depth+1, known)
			if err != nil {
				return nil, err
			}
			stack = append(stack, children...)

		case stageInsert:
			rows, err := s.insert(ctx, f, strategy)
			if err != nil {
				return nil, err
			}
			known.Mark(f.records...)
			if f.depth == 0 {
				result = rows
			}
			f.stage = stageDone
			if f.related != nil {
				children, err := s.childFrames(f.related.After, f.depth+1, known)
				if err != nil {
					return nil, err
				}
				stack = append(stack, children...)
			}

		default:
			stack = stack[:len(stack)-1]
		}
	}

	if withResult && result == nil {
		result = []map[string]any{}
	}
	return result, nil
}

// childFrames 按桶顺序执行，因此逆序入栈；入栈即登记，避免同一实例被重复排队
func (s *Service) childFrames(buckets []Bucket, depth int, known *orm.IdentityMap) ([]*frame, error) {
	out := make([]*frame, 0, len(buckets))
	for i := len(buckets) - 1; i >= 0; i-- {
		b := buckets[i]
		if len(b.Records) == 0 {
			continue
		}
		meta, err := s.provider.MetadataByName(b.TypeName)
		if err != nil {
			return nil, err
		}
		known.Mark(b.Records...)
		out = append(out, &frame{
			records:   b.Records,
			meta:      meta,
			relations: true,
			depth:     depth,
		})
	}
	return out, nil
}

// insert 准备主键、生成并执行一条语句，按需回填自增主键
func (s *Service) insert(ctx context.Context, f *frame, strategy UpdateStrategy) ([]map[string]any, error) {
	gen, err := s.keys.Select(f.meta)
	if err != nil {
		return nil, err
	}
	if err := gen.Prepare(ctx, f.records, f.meta); err != nil {
		return nil, err
	}

	query, err := s.builder.
		WithType(f.meta).
		WithUpdateStrategy(strategy).
		WithRecords(f.records).
		WithFields(f.fields).
		Build()
	if err != nil {
		return nil, err
	}

	generated := f.meta.UsesGeneratedIdentity()
	backfill := generated && f.relations
	useQuery := f.withResult || (backfill && s.readsReturning())

	fields := []logging.Field{
		logging.String("table", f.meta.Table),
		logging.Int("rows", len(f.records)),
		logging.String("mode", string(strategy.Mode())),
		logging.String("platform", string(s.platform.Name())),
		logging.Int("depth", f.depth),
	}
	start := time.Now()

	if useQuery {
		rows, err := s.query(ctx, query)
		if err != nil {
			return nil, s.execError(ctx, err, f.meta.Table, fields)
		}
		s.logger.Debug(ctx, "batch insert executed", append(fields, logging.Duration("elapsed", time.Since(start)))...)
		if generated {
			if err := s.backfillFromRows(ctx, f, rows); err != nil {
				return nil, err
			}
		}
		return rows, nil
	}

	res, err := s.db.Exec(ctx, query)
	if err != nil {
		return nil, s.execError(ctx, err, f.meta.Table, fields)
	}
	s.logger.Debug(ctx, "batch insert executed", append(fields, logging.Duration("elapsed", time.Since(start)))...)

	if backfill {
		last, err := res.LastInsertId()
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeDatabase,
				fmt.Sprintf("read last insert id of %s", f.meta.Table))
		}
		first := s.platform.FirstGeneratedID(last, len(f.records))
		if _, err := s.keys.Identity.Backfill(f.records, f.meta, first); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Service) readsReturning() bool {
	switch s.config.IdentityReadback {
	case ReadbackReturning:
		return true
	case ReadbackLastInsertID:
		return false
	default:
		return s.platform.Name() == dialect.NamePostgres
	}
}

// backfillFromRows 行数与记录数一致且含主键列时按位置回填
func (s *Service) backfillFromRows(ctx context.Context, f *frame, rows []map[string]any) error {
	id, err := f.meta.IdentifierField()
	if err != nil {
		return err
	}
	if len(rows) != len(f.records) {
		s.logger.Warn(ctx, "returned rows do not match records, identifiers not assigned",
			logging.String("table", f.meta.Table),
			logging.Int("rows", len(rows)),
			logging.Int("records", len(f.records)))
		return nil
	}
	ids := make([]any, len(rows))
	for i, row := range rows {
		v, ok := row[id.Column]
		if !ok {
			return nil
		}
		ids[i] = v
	}
	_, err = s.keys.Identity.BackfillValues(f.records, f.meta, ids)
	return err
}

func (s *Service) query(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// execError 记录警告并包装为 DATABASE_ERROR，唯一键冲突在 details 中标注
func (s *Service) execError(ctx context.Context, err error, table string, fields []logging.Field) error {
	s.logger.Warn(ctx, "batch insert failed", append(fields, logging.Error(err))...)

	if normalized, ok := errors.Normalize(err).(errors.IError); ok {
		return normalized
	}
	wrapped := errors.WrapError(err, errors.ErrCodeDatabase, fmt.Sprintf("insert into %s", table))
	if dialect.New(string(s.platform.Name())).IsUniqueViolation(err) {
		wrapped = wrapped.WithContext("unique_violation", true)
	}
	return wrapped
}

// LightBatchInsert 不经过元数据与关联分析，直接写入记录导出的列值
func (s *Service) LightBatchInsert(ctx context.Context, records []IBatchInsertable, table string) error {
	if len(records) == 0 {
		return nil
	}
	query, table, err := s.lightQuery(records, table, nil, false)
	if err != nil {
		return err
	}

	fields := []logging.Field{
		logging.String("table", table),
		logging.Int("rows", len(records)),
		logging.String("platform", string(s.platform.Name())),
	}
	if _, err := s.db.Exec(ctx, query); err != nil {
		return s.execError(ctx, err, table, fields)
	}
	s.logger.Debug(ctx, "light batch insert executed", fields...)
	return nil
}

// LightBatchInsertWithResult 未指定返回列时返回全部导出列，类型使用自增主键时追加主键列
func (s *Service) LightBatchInsertWithResult(ctx context.Context, records []IBatchInsertable, table string, returnFields ...string) ([]map[string]any, error) {
	if len(records) == 0 {
		return []map[string]any{}, nil
	}
	query, table, err := s.lightQuery(records, table, returnFields, true)
	if err != nil {
		return nil, err
	}

	fields := []logging.Field{
		logging.String("table", table),
		logging.Int("rows", len(records)),
		logging.String("platform", string(s.platform.Name())),
	}
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, s.execError(ctx, err, table, fields)
	}
	s.logger.Debug(ctx, "light batch insert executed", fields...)
	return rows, nil
}

func (s *Service) lightQuery(records []IBatchInsertable, table string, returnFields []string, withResult bool) (string, string, error) {
	if err := s.validator.ValidateLight(records); err != nil {
		return "", "", err
	}

	// 没有元数据的导出记录仍可写入，只是无法推断表名与主键列
	meta, err := s.provider.MetadataFor(records[0])
	if err != nil && !stdErrors.Is(err, orm.ErrMetadataNotFound) {
		return "", "", err
	}
	if table == "" {
		if namer, ok := records[0].(orm.ITableNamer); ok {
			table = namer.TableName()
		} else if meta != nil {
			table = meta.Table
		}
	}
	if table == "" {
		return "", "", errors.NewConfigurationError("light batch insert: table name is required")
	}

	first := records[0].BatchInsertData()
	columns := first.Columns()
	if len(columns) == 0 {
		return "", "", errors.NewValidationError("light batch insert: payload has no columns")
	}

	if withResult && len(returnFields) == 0 {
		returnFields = columns
		if meta != nil && meta.UsesGeneratedIdentity() {
			id, _ := meta.IdentifierField()
			returnFields = unique(append(append([]string(nil), columns...), id.Column))
		}
	}
	if err := checkIdentifiers(table, columns, QueryFields{Return: returnFields}); err != nil {
		return "", "", err
	}

	rows := make([]string, len(records))
	for i, r := range records {
		payload := first
		if i > 0 {
			payload = r.BatchInsertData()
		}
		if !sameColumns(payload, columns) {
			return "", "", errors.NewErrorWithCause(errors.ErrCodeValidation,
				fmt.Sprintf("record %d exports [%s], expected [%s]",
					i, strings.Join(payload.Columns(), valuesSeparator), strings.Join(columns, valuesSeparator)),
				ErrPayloadMismatch)
		}
		values := make([]string, len(payload))
		for j, c := range payload {
			literal, err := s.encoder.Encode(c.Value, "")
			if err != nil {
				return "", "", errors.WrapError(err, errors.ErrCodeEncoding,
					fmt.Sprintf("encode %s of record %d", c.Name, i))
			}
			values[j] = literal
		}
		rows[i] = "(" + strings.Join(values, valuesSeparator) + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, valuesSeparator), strings.Join(rows, valuesSeparator))
	if len(returnFields) > 0 {
		query += " RETURNING " + strings.Join(returnFields, valuesSeparator)
	}
	return query, table, nil
}

func sameColumns(p Payload, columns []string) bool {
	if len(p) != len(columns) {
		return false
	}
	for i, c := range p {
		if c.Name != columns[i] {
			return false
		}
	}
	return true
}
