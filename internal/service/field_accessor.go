package service

import (
	"context"
	"fmt"

	"whois/internal/domain"
	"whois/internal/repository"
)

// fieldAccessor 按字段策略读写目录存储
type fieldAccessor struct {
	repo repository.DirectoryRepository
}

func newFieldAccessor(repo repository.DirectoryRepository) *fieldAccessor {
	return &fieldAccessor{repo: repo}
}

// read 读取字段文本值；nil 表示 NULL
func (a *fieldAccessor) read(ctx context.Context, personID string, f domain.Field) (*string, error) {
	switch f.Kind() {
	case domain.KindIdentity:
		return &personID, nil

	case domain.KindScalar:
		s, _ := f.Scalar()
		return a.repo.ReadScalar(ctx, personID, s)

	case domain.KindSequence:
		names, err := a.repo.ReadForenames(ctx, personID)
		if err != nil {
			return nil, err
		}
		v := domain.JoinForenames(names)
		return &v, nil

	case domain.KindPooledSet:
		rel, _ := f.Relation()
		return a.readSet(ctx, personID, rel)

	case domain.KindReference:
		if f == domain.FieldLocation {
			return a.repo.ReadLocation(ctx, personID)
		}
		// 职位存储为多值关联
		rel, _ := f.Relation()
		return a.readSet(ctx, personID, rel)
	}
	return nil, domain.ErrNoSuchField
}

func (a *fieldAccessor) readSet(ctx context.Context, personID string, rel domain.Relation) (*string, error) {
	values, err := a.repo.ReadSet(ctx, personID, rel)
	if err != nil {
		return nil, err
	}
	v := domain.JoinSet(values)
	return &v, nil
}

// readPerson 读取 Dump 所需的全部字段
func (a *fieldAccessor) readPerson(ctx context.Context, personID string) (*domain.Person, error) {
	p := &domain.Person{UserID: personID}
	var err error

	if p.Surname, err = a.repo.ReadScalar(ctx, personID, domain.ScalarSurname); err != nil {
		return nil, err
	}
	if p.Title, err = a.repo.ReadScalar(ctx, personID, domain.ScalarTitle); err != nil {
		return nil, err
	}
	if p.Forenames, err = a.repo.ReadForenames(ctx, personID); err != nil {
		return nil, err
	}
	if p.Positions, err = a.repo.ReadSet(ctx, personID, domain.RelationPosition); err != nil {
		return nil, err
	}
	if p.Phones, err = a.repo.ReadSet(ctx, personID, domain.RelationPhone); err != nil {
		return nil, err
	}
	if p.Emails, err = a.repo.ReadSet(ctx, personID, domain.RelationEmail); err != nil {
		return nil, err
	}
	if p.Location, err = a.repo.ReadLocation(ctx, personID); err != nil {
		return nil, err
	}
	return p, nil
}

// write 按字段策略写入
func (a *fieldAccessor) write(ctx context.Context, personID string, f domain.Field, value string) error {
	switch f.Kind() {
	case domain.KindIdentity:
		return domain.ErrReadOnlyField

	case domain.KindScalar:
		s, _ := f.Scalar()
		return a.repo.WriteScalar(ctx, personID, s, &value)

	case domain.KindSequence:
		return a.repo.ReplaceForenames(ctx, personID, domain.SplitForenames(value))

	case domain.KindPooledSet:
		rel, _ := f.Relation()
		var values []string
		if value != "" {
			values = []string{value}
		}
		return a.repo.ReplaceSet(ctx, personID, rel, values)

	case domain.KindReference:
		if f == domain.FieldLocation {
			id, err := a.repo.GetOrCreateReference(ctx, domain.ReferenceLocation, value)
			if err != nil {
				return err
			}
			return a.repo.AssignLocation(ctx, personID, id)
		}
		if value == "" {
			return a.repo.ReplacePositions(ctx, personID, nil)
		}
		id, err := a.repo.GetOrCreateReference(ctx, domain.ReferencePosition, value)
		if err != nil {
			return err
		}
		return a.repo.ReplacePositions(ctx, personID, []int64{id})
	}
	return fmt.Errorf("%w: %v", domain.ErrNoSuchField, f)
}
