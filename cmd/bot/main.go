// Package main provides the bot entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/anime"
	"github.com/yukina-bot/yukina/internal/app/command"
	"github.com/yukina-bot/yukina/internal/app/moderation"
	"github.com/yukina-bot/yukina/internal/app/music"
	"github.com/yukina-bot/yukina/internal/app/ping"
	"github.com/yukina-bot/yukina/internal/app/settings"
	"github.com/yukina-bot/yukina/internal/infra/anilist"
	"github.com/yukina-bot/yukina/internal/infra/config"
	"github.com/yukina-bot/yukina/internal/infra/discord"
	"github.com/yukina-bot/yukina/internal/infra/logger"
	"github.com/yukina-bot/yukina/internal/infra/store"
	"github.com/yukina-bot/yukina/internal/infra/youtube"
)

var (
	app        = kingpin.New("yukina", "Yukina chat bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-modules command
	listModulesCmd = app.Command("list-modules", "List command modules and exit")
)

// moduleNames is the set of togglable command modules.
var moduleNames = []string{"music", "ping", "moderation", "anime"}

func init() {
	// start command (default)
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if cmd == listModulesCmd.FullCommand() {
		printModules()
		return
	}

	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if err := logger.Setup(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// gatewayPerms defers permission checks to the gateway, which does not
// exist yet when the dispatcher is built.
type gatewayPerms struct {
	bot *discord.Bot
}

func (p *gatewayPerms) HasPermissions(channelID, userID string, permissions int64) bool {
	if p.bot == nil {
		return false
	}
	return p.bot.HasPermissions(channelID, userID, permissions)
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	prefixes := settings.NewPrefixes(st, cfg.Bot.DefaultPrefix)
	perms := &gatewayPerms{}
	dispatcher := command.NewDispatcher(prefixes, perms)

	bot, err := discord.NewBot(cfg.Bot.Token, dispatcher, cfg.Bot.Presence)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	perms.bot = bot
	session := bot.Session()

	// Music engine
	var controller *music.Controller
	if cfg.IsModuleEnabled("music") {
		voiceMgr := discord.NewVoiceManager(session, discord.VoiceConfig{
			FFmpegPath:  cfg.Music.FFmpegPath,
			OpusBitrate: cfg.Music.OpusBitrate,
		})
		controller = music.NewController(music.Config{
			IdleTimeout: cfg.Music.IdleTimeout(),
			Messages: music.Messages{
				JoinVoiceFirst: cfg.Messages.JoinVoiceFirst,
				SameChannel:    cfg.Messages.SameChannel,
				InvalidInput:   cfg.Messages.InvalidInput,
				NoResults:      cfg.Messages.NoResults,
				ResolveFailed:  cfg.Messages.ResolveFailed,
				NoTracksQueued: cfg.Messages.NoTracksQueued,
				JoinFailed:     cfg.Messages.JoinFailed,
				PlaybackFailed: cfg.Messages.PlaybackFailed,
				QueueCleared:   cfg.Messages.QueueCleared,
			},
		},
			voiceMgr,
			youtube.NewResolver(cfg.Music.SearchLimit),
			discord.NewNotifier(session),
			discord.NewFinder(session),
		)
		if err := controller.RegisterCommands(dispatcher); err != nil {
			return fmt.Errorf("failed to register music commands: %w", err)
		}
		go controller.Run()
		defer controller.Close()
	}

	if cfg.IsModuleEnabled("ping") {
		if err := ping.New().Register(dispatcher); err != nil {
			return fmt.Errorf("failed to register ping commands: %w", err)
		}
	}

	if cfg.IsModuleEnabled("moderation") {
		mod := moderation.New(discord.NewMessagePruner(session), moderation.Messages{
			PruneDone:    cfg.Messages.PruneDone,
			DefaultError: cfg.Messages.DefaultError,
		})
		if err := mod.Register(dispatcher); err != nil {
			return fmt.Errorf("failed to register moderation commands: %w", err)
		}
	}

	if cfg.IsModuleEnabled("anime") {
		client := anilist.New(anilist.Config{
			Endpoint: cfg.AniList.Endpoint,
			Token:    cfg.AniList.Token,
			PerPage:  cfg.AniList.PageSize,
		})
		mod := anime.New(client, discord.NewChat(session), anime.Messages{
			QueryFailed: cfg.Messages.AnimeQueryErr,
			NotFound:    cfg.Messages.AnimeNotFound,
		})
		if err := mod.Configure(cfg.ModuleSettings("anime")); err != nil {
			return fmt.Errorf("failed to configure anime module: %w", err)
		}
		if err := mod.Register(dispatcher); err != nil {
			return fmt.Errorf("failed to register anime commands: %w", err)
		}
	}

	// Registered last so help covers every other module's commands.
	general := settings.New(prefixes, settings.Messages{
		PrefixUpdated: cfg.Messages.PrefixUpdated,
		DefaultError:  cfg.Messages.DefaultError,
	})
	if err := general.Register(dispatcher); err != nil {
		return fmt.Errorf("failed to register general commands: %w", err)
	}

	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	zlog.Info().Str("prefix", cfg.Bot.DefaultPrefix).Msg("Bot is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	if err := bot.Close(); err != nil {
		zlog.Error().Msgf("Failed to close gateway: %v", err)
	}
	zlog.Info().Msg("Bot stopped")
	return nil
}

// printModules prints the togglable command modules.
func printModules() {
	fmt.Println("Command Modules:")
	for _, name := range moduleNames {
		fmt.Printf("  %s\n", name)
	}
}
