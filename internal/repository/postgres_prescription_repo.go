package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/rxnote/internal/model"
)

// PostgresPrescriptionRepo はPostgreSQLを使用した処方箋リポジトリ。
type PostgresPrescriptionRepo struct {
	db *sql.DB
}

// NewPostgresPrescriptionRepo はPostgresPrescriptionRepoを生成する。
func NewPostgresPrescriptionRepo(db *sql.DB) *PostgresPrescriptionRepo {
	return &PostgresPrescriptionRepo{db: db}
}

// FindByID は指定IDの処方箋を医薬品込みで取得する。見つからない場合はnilを返す。
func (r *PostgresPrescriptionRepo) FindByID(ctx context.Context, id string) (*model.Prescription, error) {
	p := &model.Prescription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, doctor_id, patient_id, diagnosis, notes, status, created_at, updated_at
		 FROM prescriptions WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.Diagnosis, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prescription by ID: %w", err)
	}

	medications, err := r.listMedications(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Medications = medications[p.ID]

	return p, nil
}

// CreateWithMedications は処方箋と医薬品を同一トランザクションで作成する。
func (r *PostgresPrescriptionRepo) CreateWithMedications(ctx context.Context, prescription *model.Prescription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prescriptions (id, doctor_id, patient_id, diagnosis, notes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		prescription.ID, prescription.DoctorID, prescription.PatientID,
		prescription.Diagnosis, prescription.Notes, prescription.Status,
		prescription.CreatedAt, prescription.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prescription: %w", err)
	}

	for _, med := range prescription.Medications {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO medications (id, prescription_id, name, dosage, frequency, duration, instructions, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			med.ID, med.PrescriptionID, med.Name, med.Dosage, med.Frequency,
			med.Duration, med.Instructions, med.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert medication: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByDoctorID は医師が作成した処方箋一覧を医薬品込みでcreated_at降順で返す。
func (r *PostgresPrescriptionRepo) ListByDoctorID(ctx context.Context, doctorID string) ([]*model.Prescription, error) {
	return r.listByColumn(ctx, "doctor_id", doctorID)
}

// ListByPatientID は患者宛の処方箋一覧を医薬品込みでcreated_at降順で返す。
func (r *PostgresPrescriptionRepo) ListByPatientID(ctx context.Context, patientID string) ([]*model.Prescription, error) {
	return r.listByColumn(ctx, "patient_id", patientID)
}

// UpdateStatus は処方箋の状態を更新する。
func (r *PostgresPrescriptionRepo) UpdateStatus(ctx context.Context, id string, status model.PrescriptionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE prescriptions SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update prescription status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewPrescriptionNotFoundError(id)
	}
	return nil
}

// listByColumn は指定カラムで処方箋一覧を取得し、医薬品を付与する。
// columnは呼び出し側が固定文字列のみを渡すこと。
func (r *PostgresPrescriptionRepo) listByColumn(ctx context.Context, column, value string) ([]*model.Prescription, error) {
	query := fmt.Sprintf(
		`SELECT id, doctor_id, patient_id, diagnosis, notes, status, created_at, updated_at
		 FROM prescriptions
		 WHERE %s = $1
		 ORDER BY created_at DESC`, column)

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	defer rows.Close()

	var prescriptions []*model.Prescription
	var ids []string
	for rows.Next() {
		p := &model.Prescription{}
		if err := rows.Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.Diagnosis, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prescriptions: %w", err)
	}

	if len(ids) == 0 {
		return prescriptions, nil
	}

	medications, err := r.listMedications(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range prescriptions {
		p.Medications = medications[p.ID]
	}

	return prescriptions, nil
}

// listMedications は複数の処方箋IDに紐づく医薬品を一括取得し、処方箋IDごとに返す。
func (r *PostgresPrescriptionRepo) listMedications(ctx context.Context, prescriptionIDs []string) (map[string][]model.Medication, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, prescription_id, name, dosage, frequency, duration, instructions, created_at
		 FROM medications
		 WHERE prescription_id = ANY($1)
		 ORDER BY created_at ASC`,
		pq.Array(prescriptionIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]model.Medication)
	for rows.Next() {
		var m model.Medication
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.Name, &m.Dosage, &m.Frequency, &m.Duration, &m.Instructions, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		result[m.PrescriptionID] = append(result[m.PrescriptionID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medications: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ PrescriptionRepository = (*PostgresPrescriptionRepo)(nil)
