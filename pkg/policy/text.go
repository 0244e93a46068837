package policy

// Enumerations encode as their names so API answers stay readable.

func (f ScheduleRunType) MarshalText() ([]byte, error) {
	if f == UnknownFrequency {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

func (f *ScheduleRunType) UnmarshalText(b []byte) (err error) {
	if len(b) == 0 {
		*f = UnknownFrequency
		return nil
	}
	*f, err = ParseScheduleRunType(string(b))
	return err
}

func (f RetentionScheduleFormat) MarshalText() ([]byte, error) {
	if f == UnknownFormat {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

func (f *RetentionScheduleFormat) UnmarshalText(b []byte) (err error) {
	if len(b) == 0 {
		*f = UnknownFormat
		return nil
	}
	*f, err = ParseRetentionScheduleFormat(string(b))
	return err
}

func (w WeekOfMonth) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *WeekOfMonth) UnmarshalText(b []byte) (err error) {
	*w, err = ParseWeekOfMonth(string(b))
	return err
}
