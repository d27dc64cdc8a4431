package store

import "errors"

// Общие ошибки хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись с таким ID уже существует.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStorage — сбой backend'а хранилища (сеть, SQL, сериализация).
	ErrStorage = errors.New("storage error")

	// ErrClosed — хранилище не открыто или уже закрыто.
	ErrClosed = errors.New("store is closed")
)
