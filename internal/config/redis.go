package config

// Redis backs distributed rate limiting, the response cache, the push task
// queue and the per-receiver pub/sub topics.  If the server cannot be
// reached at startup NewRedisClient returns nil and callers degrade:
// rate limiting falls back to process memory, caching and push are off.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/hibiken/asynq"
    "github.com/redis/go-redis/v9"
    "github.com/spf13/viper"
)

// RedisConfig is read from:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand, used when host/port are not both set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

func setRedisDefaults(v *viper.Viper) {
    v.SetDefault("REDIS_ADDR", "localhost:6379")
    v.SetDefault("REDIS_DB", 0)
    v.SetDefault("REDIS_TLS", false)
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
    addr := v.GetString("REDIS_ADDR")
    if host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     addr,
        Password: v.GetString("REDIS_PASSWORD"),
        DB:       v.GetInt("REDIS_DB"),
        TLS:      v.GetBool("REDIS_TLS"),
    }
}

func (c RedisConfig) tlsConfig() *tls.Config {
    if !c.TLS {
        return nil
    }
    return &tls.Config{InsecureSkipVerify: true}
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// on failure.
func NewRedisClient(c RedisConfig) *redis.Client {
    client := redis.NewClient(&redis.Options{
        Addr:      c.Addr,
        Password:  c.Password,
        DB:        c.DB,
        TLSConfig: c.tlsConfig(),
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}

// AsynqOpt returns the same connection settings for the asynq client and server.
func (c RedisConfig) AsynqOpt() asynq.RedisClientOpt {
    return asynq.RedisClientOpt{
        Addr:      c.Addr,
        Password:  c.Password,
        DB:        c.DB,
        TLSConfig: c.tlsConfig(),
    }
}
