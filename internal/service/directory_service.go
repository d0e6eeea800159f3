package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"whois/internal/command"
	"whois/internal/domain"
	"whois/internal/events"
	"whois/internal/repository"
	"whois/internal/store"

	"go.uber.org/zap"
)

// 命令结果文本
const (
	TextOK           = "OK"
	TextUserNotKnown = "User not known"
	TextNoSuchField  = "No such field"
	TextReadOnly     = "Field is read-only"
	faultPrefix      = "Fault in Command Processing: "
)

// 各操作出错时建议检查的表
const (
	checkDump   = "user_login, comp_user, user_forename, user_position, user_phone, user_email, location"
	checkLookup = "user_login"
	checkEnsure = "login_account, comp_user, user_login"
	checkDelete = "user_email, user_phone, user_position, user_forename, user_login, comp_user, login_account"
)

// DirectoryDeps DirectoryService 依赖
type DirectoryDeps struct {
	Repo   repository.DirectoryRepository
	Logger *zap.Logger

	// 可选：查询缓存
	Cache       store.KV
	CachePrefix string
	CacheTTL    time.Duration

	// 可选：变更事件
	Publisher events.Publisher
}

// DirectoryService 命令分发：Dump / Lookup / Update / Delete
// 每次调用互不共享状态；并发一致性交给存储层
type DirectoryService struct {
	repo     repository.DirectoryRepository
	accessor *fieldAccessor
	logger   *zap.Logger

	cache       store.KV
	cachePrefix string
	cacheTTL    time.Duration

	publisher events.Publisher
}

// NewDirectoryService 创建 DirectoryService
func NewDirectoryService(deps DirectoryDeps) *DirectoryService {
	s := &DirectoryService{
		repo:        deps.Repo,
		accessor:    newFieldAccessor(deps.Repo),
		logger:      deps.Logger,
		cache:       deps.Cache,
		cachePrefix: deps.CachePrefix,
		cacheTTL:    deps.CacheTTL,
		publisher:   deps.Publisher,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	return s
}

// Execute 执行一条已解析的命令，返回输出文本；任何错误都转换为文本，不向上抛出
func (s *DirectoryService) Execute(ctx context.Context, req command.Request) string {
	s.logger.Debug("executing command",
		zap.String("op", req.Kind.String()),
		zap.String("login", req.Login),
		zap.String("field", req.Field),
	)

	switch req.Kind {
	case command.KindDump:
		p, err := s.Dump(ctx, req.Login)
		if err != nil {
			return errorText(err)
		}
		return strings.Join(p.Lines(), "\n")

	case command.KindLookup:
		v, err := s.Lookup(ctx, req.Login, req.Field)
		if errors.Is(err, domain.ErrNoValue) {
			return ""
		}
		if err != nil {
			return errorText(err)
		}
		return v

	case command.KindUpdate:
		if err := s.Update(ctx, req.Login, req.Field, req.Value); err != nil {
			return errorText(err)
		}
		return TextOK

	case command.KindDelete:
		if err := s.Delete(ctx, req.Login); err != nil {
			return errorText(err)
		}
		return TextOK
	}
	return faultPrefix + "unknown request kind " + req.Kind.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotKnown):
		return TextUserNotKnown
	case errors.Is(err, domain.ErrNoSuchField):
		return TextNoSuchField
	case errors.Is(err, domain.ErrReadOnlyField):
		return TextReadOnly
	}
	return faultPrefix + err.Error()
}

// Dump 读取人员的全部字段
func (s *DirectoryService) Dump(ctx context.Context, login string) (*domain.Person, error) {
	personID, err := s.findPerson(ctx, "dump", login)
	if err != nil {
		return nil, err
	}
	p, err := s.accessor.readPerson(ctx, personID)
	if err != nil {
		return nil, s.fail("dump", login, "", checkDump, err)
	}
	return p, nil
}

// Lookup 读取单个字段；值为 NULL 时返回 domain.ErrNoValue
func (s *DirectoryService) Lookup(ctx context.Context, login, fieldName string) (string, error) {
	f, known := domain.ParseField(fieldName)

	// 读取存储前先取代次；期间若有写入，代次已变，本次结果只会写入旧代次的键
	var (
		gen       string
		cacheable bool
	)
	if known {
		gen, cacheable = s.cacheGeneration(ctx, login)
		if cacheable {
			if v, ok := s.cacheGet(ctx, login, gen, f); ok {
				return v, nil
			}
		}
	}

	personID, err := s.findPerson(ctx, "lookup", login)
	if err != nil {
		return "", err
	}
	if !known {
		return "", domain.ErrNoSuchField
	}

	v, err := s.accessor.read(ctx, personID, f)
	if err != nil {
		return "", s.fail("lookup", login, f.String(), f.Check(), err)
	}
	if v == nil {
		return "", domain.ErrNoValue
	}
	if cacheable {
		s.cachePut(ctx, login, gen, f, *v)
	}
	return *v, nil
}

// Update 更新单个字段，登录名未绑定人员时先创建
func (s *DirectoryService) Update(ctx context.Context, login, fieldName, value string) error {
	f, ok := domain.ParseField(fieldName)
	if !ok {
		return domain.ErrNoSuchField
	}
	if f.Kind() == domain.KindIdentity {
		return domain.ErrReadOnlyField
	}

	personID, err := s.repo.EnsurePerson(ctx, login)
	if err != nil {
		return s.fail("update", login, f.String(), checkEnsure, err)
	}
	err = s.accessor.write(ctx, personID, f, value)
	s.invalidate(ctx, login)
	if err != nil {
		return s.fail("update", login, f.String(), f.Check(), err)
	}

	s.publish(ctx, events.NewEvent(events.OpUpdate, login, f.String(), value))
	return nil
}

// Delete 删除人员及其全部关联；登录名登记无论人员是否存在都会删除
// 存储层在一个事务内完成全部删除
func (s *DirectoryService) Delete(ctx context.Context, login string) error {
	deleted, err := s.repo.DeleteLogin(ctx, login)
	s.invalidate(ctx, login)
	if err != nil {
		return s.fail("delete", login, "", checkDelete, err)
	}

	s.logger.Debug("deleted login", zap.String("login", login), zap.Bool("person_deleted", deleted))
	s.publish(ctx, events.NewEvent(events.OpDelete, login, "", ""))
	return nil
}

func (s *DirectoryService) findPerson(ctx context.Context, op, login string) (string, error) {
	personID, err := s.repo.FindPersonID(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrUserNotKnown
		}
		return "", s.fail(op, login, "", checkLookup, err)
	}
	return personID, nil
}

// fail 记录存储层失败并包装为 OperationError
func (s *DirectoryService) fail(op, login, field, check string, err error) error {
	if repository.IsUniqueViolation(err) {
		check += " (unique constraint)"
	}
	s.logger.Error("directory operation failed",
		zap.String("op", op),
		zap.String("login", login),
		zap.String("field", field),
		zap.String("check", check),
		zap.Error(err),
	)
	return &domain.OperationError{Op: op, Login: login, Check: check, Err: err}
}

func (s *DirectoryService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change event",
			zap.String("op", ev.Op),
			zap.String("login", ev.Login),
			zap.Error(err),
		)
	}
}

// 缓存键：<prefix><login>:<代次>:<字段>；代次键 <prefix><login>:gen 在每次写入后自增
func (s *DirectoryService) cacheKey(login, gen string, f domain.Field) string {
	return s.cachePrefix + login + ":" + gen + ":" + f.String()
}

func (s *DirectoryService) generationKey(login string) string {
	return s.cachePrefix + login + ":gen"
}

// cacheGeneration 返回登录名当前的缓存代次；缓存不可用时 ok 为 false
func (s *DirectoryService) cacheGeneration(ctx context.Context, login string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	gen, err := s.cache.Get(ctx, s.generationKey(login))
	switch {
	case errors.Is(err, store.ErrMiss):
		return "0", true
	case err != nil:
		s.logger.Warn("cache get failed", zap.String("login", login), zap.Error(err))
		return "", false
	}
	return gen, true
}

func (s *DirectoryService) cacheGet(ctx context.Context, login, gen string, f domain.Field) (string, bool) {
	v, err := s.cache.Get(ctx, s.cacheKey(login, gen, f))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("cache get failed", zap.String("login", login), zap.Error(err))
		}
		return "", false
	}
	return v, true
}

func (s *DirectoryService) cachePut(ctx context.Context, login, gen string, f domain.Field, value string) {
	if err := s.cache.Set(ctx, s.cacheKey(login, gen, f), value, s.cacheTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("login", login), zap.Error(err))
	}
}

// invalidate 自增代次，使登录名下所有已缓存字段失效；旧键随 TTL 过期
func (s *DirectoryService) invalidate(ctx context.Context, login string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, s.generationKey(login)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("login", login), zap.Error(err))
	}
}
