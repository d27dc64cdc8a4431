// Package config читает настройки процессов FlowForge из окружения
// (с необязательным .env файлом).
package config
