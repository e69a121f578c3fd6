package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

type BookService struct {
	books  port.BookRepository
	uow    port.UnitOfWork
	logger *zap.Logger
}

func NewBookService(books port.BookRepository, uow port.UnitOfWork, logger *zap.Logger) *BookService {
	return &BookService{books: books, uow: uow, logger: logger.Named("catalog")}
}

func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find book: %w", err)
	}
	if book == nil {
		s.logger.Warn("book not found in catalog", zap.String("book_id", id))
		return nil, domain.NewBookNotFound(id)
	}
	return book, nil
}

func (s *BookService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.books.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *BookService) RegisterBook(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	saved, err := s.books.Save(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("save book: %w", err)
	}
	s.logger.Info("book registered", zap.String("book_id", saved.ID()), zap.String("title", saved.Title()))
	return saved, nil
}

func (s *BookService) RenameBook(ctx context.Context, id, title string) (*domain.Book, error) {
	var renamed *domain.Book
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return err
		}
		if err := book.UpdateTitle(title); err != nil {
			return err
		}
		renamed, err = s.books.Save(ctx, book)
		if err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}
