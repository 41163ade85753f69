// Package seed は開発環境用のダミーデータ投入を提供する。
// 医師・患者アカウントと処方箋を通常のサービス層経由で作成するため、
// パスワードハッシュやプロフィールの遅延作成も本番と同じ経路を通る。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hitoshi/rxnote/internal/auth"
	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/prescription"
)

// Registrar はアカウント登録に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type Registrar interface {
	SignUp(ctx context.Context, email, password string, attrs auth.SignUpAttributes) (*auth.AuthData, error)
}

// Prescriber は処方箋作成に必要なインターフェース。
// prescription.Serviceの部分集合として定義する。
type Prescriber interface {
	Create(ctx context.Context, doctorID string, input prescription.CreateInput) (*model.Prescription, error)
}

// Config はシードデータの件数と共通パスワードの設定。
type Config struct {
	Doctors       int
	Patients      int
	Prescriptions int
	Password      string // 全シードアカウント共通のパスワード
}

// DefaultConfig は開発環境向けのデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		Doctors:       3,
		Patients:      20,
		Prescriptions: 30,
		Password:      "password123",
	}
}

// Seeder はダミーデータ投入を実行する。
type Seeder struct {
	registrar  Registrar
	prescriber Prescriber
	config     Config
}

// NewSeeder はSeederを生成する。
func NewSeeder(registrar Registrar, prescriber Prescriber, config Config) *Seeder {
	return &Seeder{
		registrar:  registrar,
		prescriber: prescriber,
		config:     config,
	}
}

// 処方箋生成に使う診断名と医薬品の候補。
var (
	diagnoses = []string{
		"急性上気道炎",
		"季節性アレルギー性鼻炎",
		"高血圧症",
		"2型糖尿病",
		"急性胃腸炎",
		"緊張型頭痛",
	}
	medicationNames = []string{
		"アモキシシリン",
		"ロキソプロフェン",
		"フェキソフェナジン",
		"アムロジピン",
		"メトホルミン",
		"レバミピド",
	}
	dosages     = []string{"100mg", "250mg", "500mg", "2.5g"}
	frequencies = []string{"1日1回", "1日2回", "1日3回"}
	durations   = []string{"5日間", "7日間", "14日間", "30日間"}
)

// Run はダミーデータを投入する。
// 既に登録済みのメールアドレスはスキップするため、再実行しても安全。
func (s *Seeder) Run(ctx context.Context) error {
	gofakeit.Seed(time.Now().UnixNano())

	slog.Info("seeding accounts",
		slog.Int("doctors", s.config.Doctors),
		slog.Int("patients", s.config.Patients),
	)

	doctorIDs, err := s.seedAccounts(ctx, s.config.Doctors, model.RoleDoctor)
	if err != nil {
		return fmt.Errorf("医師アカウントの投入に失敗しました: %w", err)
	}

	patientIDs, err := s.seedAccounts(ctx, s.config.Patients, model.RolePatient)
	if err != nil {
		return fmt.Errorf("患者アカウントの投入に失敗しました: %w", err)
	}

	if len(doctorIDs) == 0 || len(patientIDs) == 0 {
		slog.Info("no new accounts created, skipping prescriptions")
		return nil
	}

	created, err := s.seedPrescriptions(ctx, doctorIDs, patientIDs)
	if err != nil {
		return fmt.Errorf("処方箋の投入に失敗しました: %w", err)
	}

	slog.Info("seed completed",
		slog.Int("doctors", len(doctorIDs)),
		slog.Int("patients", len(patientIDs)),
		slog.Int("prescriptions", created),
	)
	return nil
}

// seedAccounts は指定ロールのアカウントを作成し、作成できたIDの一覧を返す。
func (s *Seeder) seedAccounts(ctx context.Context, count int, role model.Role) ([]string, error) {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		// 再実行時に重複を検出できるよう、メールアドレスは決定的に生成する。
		email := fmt.Sprintf("%s%d@example.com", role, i+1)

		data, err := s.registrar.SignUp(ctx, email, s.config.Password, auth.SignUpAttributes{
			FullName: gofakeit.Name(),
			Role:     role,
		})
		if err != nil {
			// 再実行時は既存アカウントをスキップする。
			if model.IsAlreadyRegistered(err) {
				continue
			}
			return nil, err
		}
		ids = append(ids, data.Identity.ID)
	}
	return ids, nil
}

// seedPrescriptions はランダムな医師・患者の組み合わせで処方箋を作成する。
func (s *Seeder) seedPrescriptions(ctx context.Context, doctorIDs, patientIDs []string) (int, error) {
	created := 0
	for i := 0; i < s.config.Prescriptions; i++ {
		doctorID := doctorIDs[gofakeit.Number(0, len(doctorIDs)-1)]
		patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]

		input := prescription.CreateInput{
			PatientID: patientID,
			Diagnosis: diagnoses[gofakeit.Number(0, len(diagnoses)-1)],
			Notes:     gofakeit.Sentence(8),
		}

		medicationCount := gofakeit.Number(1, 3)
		for j := 0; j < medicationCount; j++ {
			input.Medications = append(input.Medications, prescription.MedicationInput{
				Name:      medicationNames[gofakeit.Number(0, len(medicationNames)-1)],
				Dosage:    dosages[gofakeit.Number(0, len(dosages)-1)],
				Frequency: frequencies[gofakeit.Number(0, len(frequencies)-1)],
				Duration:  durations[gofakeit.Number(0, len(durations)-1)],
			})
		}

		if _, err := s.prescriber.Create(ctx, doctorID, input); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
