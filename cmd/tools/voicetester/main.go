package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/voicebot/backend/internal/config"
	chatmodel "github.com/zhouzirui/voicebot/backend/internal/model/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/ai"
	"github.com/zhouzirui/voicebot/backend/internal/service/chat"
	"github.com/zhouzirui/voicebot/backend/internal/service/speech"
	"github.com/zhouzirui/voicebot/backend/internal/service/turn"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "turn", "测试模式: chat、tts 或 turn")
	text := flag.String("text", "", "输入文本")
	key := flag.String("key", "", "Groq API key，默认读取 GROQ_API_KEY")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	slow := flag.Bool("slow", cfg.Speech.DefaultSlow, "慢速朗读")
	outputPath := flag.String("out", "", "输出音频文件路径 (默认自动生成)")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal("请通过 -text 提供输入文本")
	}
	if *key == "" {
		*key = cfg.Completion.DefaultCredential
	}
	if *language == "" {
		*language = cfg.Speech.DefaultLanguage
	}
	if *outputPath == "" {
		*outputPath = fmt.Sprintf("voicetester-%d.mp3", time.Now().Unix())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "chat":
		runChat(ctx, cfg, *key, *text)
	case "tts":
		runTTS(ctx, cfg, *text, *language, *slow, *outputPath)
	case "turn":
		runTurn(ctx, cfg, *key, *text, *language, *slow, *outputPath)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=chat、-mode=tts 或 -mode=turn 指定测试模式")
	}
}

func runChat(ctx context.Context, cfg *config.Config, key, text string) {
	svc, err := ai.NewService(cfg.Completion)
	if err != nil {
		log.Fatalf("初始化补全服务失败: %v", err)
	}

	log.Printf("开始补全测试: provider=%s model=%s", svc.Provider(), cfg.Completion.Model)
	reply, err := svc.Complete(ctx, key, []chatmodel.Message{{Role: chatmodel.RoleUser, Content: text}})
	if err != nil {
		log.Fatalf("补全调用失败: %v", err)
	}
	fmt.Println(reply)
}

func runTTS(ctx context.Context, cfg *config.Config, text, language string, slow bool, outputPath string) {
	svc := speech.NewService(cfg.Speech.Model(), nil)

	log.Printf("开始 TTS 测试: lang=%s slow=%t", language, slow)
	resp, err := svc.SynthesizeToBuffer(ctx, "voicetester", text, language, slow)
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}
	log.Printf("TTS 合成成功: 输出文件 %s, chunks=%d bytes=%d", outputPath, resp.Chunks, len(resp.AudioData))
}

// runTurn 走与网页相同的完整流程：记录、补全、合成
func runTurn(ctx context.Context, cfg *config.Config, key, text, language string, slow bool, outputPath string) {
	aiSvc, err := ai.NewService(cfg.Completion)
	if err != nil {
		log.Fatalf("初始化补全服务失败: %v", err)
	}

	store := chat.NewService(chatmodel.Settings{})
	session, err := store.CreateSession(ctx, chatmodel.SettingsUpdate{Credential: &key, Language: &language, Slow: &slow})
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}

	svc := turn.NewService(store, aiSvc, speech.NewService(cfg.Speech.Model(), nil))
	result, err := svc.Submit(ctx, session.ID, text, turn.OnState(func(state turn.State) {
		log.Printf("state=%s", state)
	}))
	if err != nil {
		log.Fatal(turn.UserMessage(err))
	}

	fmt.Println(result.AssistantMessage.Content)
	if result.Err != nil {
		log.Printf("[WARN] %s", turn.UserMessage(result.Err))
		return
	}

	audio, err := decodeAudio(result.AssistantMessage.Audio)
	if err != nil {
		log.Fatalf("解码音频失败: %v", err)
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}
	log.Printf("完整轮次成功: 输出文件 %s", outputPath)
}

func decodeAudio(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
